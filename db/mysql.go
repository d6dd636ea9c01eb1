package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"whatsapp-reminders/models"
)

// Colonne lette in ogni SELECT; seq serve solo per l'ordinamento
const reminderColumns = "id, owner, text, date, time, frequency, state, notified_at, completed_at, created_at, updated_at"

// MySQLStore implementa handlers.ReminderStore su MySQL
type MySQLStore struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewMySQLStore apre la connessione. Il DSN deve contenere parseTime=true.
func NewMySQLStore(dsn string, logger zerolog.Logger) (*MySQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Verifica la connessione
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connessione a MySQL fallita: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MySQLStore{db: db, logger: logger.With().Str("store", "mysql").Logger()}, nil
}

// Create salva una nuova bozza. La bozza deve essere già materializzata.
func (m *MySQLStore) Create(ctx context.Context, owner string, draft models.Draft) (*models.Reminder, error) {
	r, err := models.NewReminder(owner, draft, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = m.db.NamedExecContext(ctx, `
		INSERT INTO reminders (id, owner, text, date, time, frequency, state, created_at, updated_at)
		VALUES (:id, :owner, :text, :date, :time, :frequency, :state, :created_at, :updated_at)`, r)
	if err != nil {
		return nil, fmt.Errorf("errore nel salvataggio del reminder: %w", err)
	}
	return r, nil
}

// ListByOwner restituisce i reminder di un utente in ordine di creazione
func (m *MySQLStore) ListByOwner(ctx context.Context, owner string) ([]*models.Reminder, error) {
	var out []*models.Reminder
	err := m.db.SelectContext(ctx, &out,
		"SELECT "+reminderColumns+" FROM reminders WHERE owner = ? ORDER BY seq ASC", owner)
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento dei reminder di %s: %w", owner, err)
	}
	return out, nil
}

func (m *MySQLStore) Get(ctx context.Context, id string) (*models.Reminder, error) {
	var r models.Reminder
	err := m.db.GetContext(ctx, &r, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento del reminder %s: %w", id, err)
	}
	return &r, nil
}

func (m *MySQLStore) MarkNotified(ctx context.Context, id string) (*models.Reminder, error) {
	return m.apply(ctx, id, models.EventNotify)
}

func (m *MySQLStore) MarkCompleted(ctx context.Context, id string) (*models.Reminder, error) {
	return m.apply(ctx, id, models.EventComplete)
}

// apply legge la riga con lock, applica la transizione e la salva nella stessa transazione
func (m *MySQLStore) apply(ctx context.Context, id string, event models.Event) (*models.Reminder, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var r models.Reminder
	err = tx.GetContext(ctx, &r, "SELECT "+reminderColumns+" FROM reminders WHERE id = ? FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento del reminder %s: %w", id, err)
	}

	if err := r.Apply(event, time.Now().UTC()); err != nil {
		return nil, err
	}

	_, err = tx.NamedExecContext(ctx, `
		UPDATE reminders
		SET state = :state, notified_at = :notified_at, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`, &r)
	if err != nil {
		return nil, fmt.Errorf("errore nell'aggiornamento del reminder %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MySQLStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := m.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("errore nella cancellazione del reminder %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListDue esegue la query dei candidati. Le date sono confrontate come DATE,
// quindi i limiti sono i giorni di calendario di now e di now+24h.
func (m *MySQLStore) ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	from, to := models.DueRange(now)

	var out []*models.Reminder
	err := m.db.SelectContext(ctx, &out, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE (frequency = ? AND notified_at IS NULL)
		   OR (frequency <> ? AND state = ? AND date BETWEEN ? AND ?)
		ORDER BY seq ASC`,
		models.FrequencyDaily,
		models.FrequencyDaily, models.StateActive, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("errore nella query dei reminder in scadenza: %w", err)
	}
	return out, nil
}

// Chiude la connessione al database
func (m *MySQLStore) Close() error {
	return m.db.Close()
}
