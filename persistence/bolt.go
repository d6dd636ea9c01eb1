package persistence

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"whatsapp-reminders/models"
)

var (
	remindersBucket = []byte("reminders")    // seq -> reminder (gob)
	idsBucket       = []byte("reminder_ids") // id -> seq
)

// BoltStore implementa handlers.ReminderStore su un file bbolt
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("apertura di %s fallita: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(remindersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(idsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Create(_ context.Context, owner string, draft models.Draft) (*models.Reminder, error) {
	r, err := models.NewReminder(owner, draft, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(remindersBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		data, err := encodeToBinary(r)
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := bucket.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(idsBucket).Put([]byte(r.ID), key)
	})
	if err != nil {
		return nil, fmt.Errorf("errore nel salvataggio del reminder: %w", err)
	}
	return r, nil
}

func (s *BoltStore) ListByOwner(_ context.Context, owner string) ([]*models.Reminder, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	var out []*models.Reminder
	for _, r := range all {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *BoltStore) Get(_ context.Context, id string) (*models.Reminder, error) {
	var found *models.Reminder
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(idsBucket).Get([]byte(id))
		if key == nil {
			return nil
		}
		var r models.Reminder
		if err := decodeBinary(tx.Bucket(remindersBucket).Get(key), &r); err != nil {
			return err
		}
		found = &r
		return nil
	})
	return found, err
}

func (s *BoltStore) MarkNotified(_ context.Context, id string) (*models.Reminder, error) {
	return s.apply(id, models.EventNotify)
}

func (s *BoltStore) MarkCompleted(_ context.Context, id string) (*models.Reminder, error) {
	return s.apply(id, models.EventComplete)
}

// apply esegue lettura, transizione e scrittura nella stessa transazione bbolt
func (s *BoltStore) apply(id string, event models.Event) (*models.Reminder, error) {
	var updated *models.Reminder
	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := tx.Bucket(idsBucket).Get([]byte(id))
		if key == nil {
			return nil
		}
		bucket := tx.Bucket(remindersBucket)
		var r models.Reminder
		if err := decodeBinary(bucket.Get(key), &r); err != nil {
			return err
		}
		if err := r.Apply(event, time.Now().UTC()); err != nil {
			return err
		}
		data, err := encodeToBinary(&r)
		if err != nil {
			return err
		}
		if err := bucket.Put(key, data); err != nil {
			return err
		}
		updated = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BoltStore) Delete(_ context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(idsBucket)
		key := ids.Get([]byte(id))
		if key == nil {
			return nil
		}
		// key appartiene alla transazione: va letta prima di cancellare
		seq := append([]byte(nil), key...)
		if err := ids.Delete([]byte(id)); err != nil {
			return err
		}
		deleted = true
		return tx.Bucket(remindersBucket).Delete(seq)
	})
	return deleted, err
}

// ListDue scorre tutti i reminder e filtra in memoria
func (s *BoltStore) ListDue(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	return filterDue(all, now), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) all() ([]*models.Reminder, error) {
	var out []*models.Reminder
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(remindersBucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var r models.Reminder
			if err := decodeBinary(v, &r); err != nil {
				return fmt.Errorf("reminder corrotto alla chiave %x: %w", k, err)
			}
			out = append(out, &r)
		}
		return nil
	})
	return out, err
}
