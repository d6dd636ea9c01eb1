package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-reminders/models"
)

// Chiavi Redis. Ogni reminder è un hash; gli indici sono sorted set con
// punteggio pari alla sequenza di creazione.
const (
	seqCounterKey = "reminders:seq"
	allIndexKey   = "reminders:all"
)

func reminderKey(prefix, id string) string      { return prefix + "reminder:" + id }
func ownerIndexKey(prefix, owner string) string { return prefix + "reminders:owner:" + owner }

// RedisStore implementa handlers.ReminderStore su Redis
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore apre il client e verifica la connessione. prefix separa i dati
// di più istanze sullo stesso database.
func NewRedisStore(ctx context.Context, options redis.Options, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&options)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connessione a Redis fallita: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) Create(ctx context.Context, owner string, draft models.Draft) (*models.Reminder, error) {
	r, err := models.NewReminder(owner, draft, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	seq, err := s.rdb.Incr(ctx, s.prefix+seqCounterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("errore nel calcolo della sequenza: %w", err)
	}

	member := redis.Z{Score: float64(seq), Member: r.ID}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, reminderKey(s.prefix, r.ID), toHash(r))
		pipe.ZAdd(ctx, s.prefix+allIndexKey, member)
		pipe.ZAdd(ctx, ownerIndexKey(s.prefix, owner), member)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("errore nel salvataggio del reminder: %w", err)
	}
	return r, nil
}

func (s *RedisStore) ListByOwner(ctx context.Context, owner string) ([]*models.Reminder, error) {
	ids, err := s.rdb.ZRange(ctx, ownerIndexKey(s.prefix, owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento dei reminder di %s: %w", owner, err)
	}
	return s.load(ctx, ids)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Reminder, error) {
	fields, err := s.rdb.HGetAll(ctx, reminderKey(s.prefix, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento del reminder %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fromHash(fields)
}

func (s *RedisStore) MarkNotified(ctx context.Context, id string) (*models.Reminder, error) {
	return s.apply(ctx, id, models.EventNotify)
}

func (s *RedisStore) MarkCompleted(ctx context.Context, id string) (*models.Reminder, error) {
	return s.apply(ctx, id, models.EventComplete)
}

// apply usa WATCH sulla chiave del reminder: se un altro client la modifica
// tra lettura e scrittura la transazione fallisce con redis.TxFailedErr
func (s *RedisStore) apply(ctx context.Context, id string, event models.Event) (*models.Reminder, error) {
	key := reminderKey(s.prefix, id)
	var updated *models.Reminder

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		r, err := fromHash(fields)
		if err != nil {
			return err
		}
		if err := r.Apply(event, time.Now().UTC()); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, toHash(r))
			return nil
		})
		if err != nil {
			return err
		}
		updated = r
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	key := reminderKey(s.prefix, id)
	owner, err := s.rdb.HGet(ctx, key, "owner").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("errore nella cancellazione del reminder %s: %w", id, err)
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, key)
		pipe.ZRem(ctx, s.prefix+allIndexKey, id)
		pipe.ZRem(ctx, ownerIndexKey(s.prefix, owner), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("errore nella cancellazione del reminder %s: %w", id, err)
	}
	return deleted.Val() > 0, nil
}

func (s *RedisStore) ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	ids, err := s.rdb.ZRange(ctx, s.prefix+allIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("errore nella query dei reminder in scadenza: %w", err)
	}
	all, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	return filterDue(all, now), nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// load legge gli hash in un'unica pipeline, saltando gli ID orfani
func (s *RedisStore) load(ctx context.Context, ids []string) ([]*models.Reminder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, reminderKey(s.prefix, id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Reminder, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		r, err := fromHash(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func toHash(r *models.Reminder) map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"owner":        r.Owner,
		"text":         r.Text,
		"date":         r.Date.String(),
		"time":         r.Time,
		"frequency":    string(r.Frequency),
		"state":        string(r.State),
		"notified_at":  formatOptionalTime(r.NotifiedAt),
		"completed_at": formatOptionalTime(r.CompletedAt),
		"created_at":   r.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   r.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func fromHash(fields map[string]string) (*models.Reminder, error) {
	date, err := models.ParseDate(fields["date"])
	if err != nil {
		return nil, err
	}
	r := &models.Reminder{
		ID:        fields["id"],
		Owner:     fields["owner"],
		Text:      fields["text"],
		Date:      date,
		Time:      fields["time"],
		Frequency: models.Frequency(fields["frequency"]),
		State:     models.State(fields["state"]),
	}
	if r.NotifiedAt, err = parseOptionalTime(fields["notified_at"]); err != nil {
		return nil, err
	}
	if r.CompletedAt, err = parseOptionalTime(fields["completed_at"]); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, err
	}
	return r, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
