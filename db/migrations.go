package db

import (
	"context"
	"fmt"
	"time"
)

// Migration rappresenta una singola migration del database.
// Ogni migration contiene un solo statement: il driver non abilita multiStatements.
type Migration struct {
	Version     int    `db:"version"`
	Description string `db:"description"`
	SQL         string `db:"-"`
}

// Tutte le migration disponibili in ordine di versione
var migrations = []Migration{
	{
		Version:     1,
		Description: "Tabella reminders",
		SQL: `
		CREATE TABLE IF NOT EXISTS reminders (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id CHAR(36) NOT NULL,
			owner VARCHAR(255) NOT NULL,
			text TEXT NOT NULL,
			date DATE NOT NULL,
			time CHAR(5) NOT NULL,
			frequency VARCHAR(10) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_reminders_id (id),
			INDEX idx_reminders_owner (owner)
		)`,
	},
	{
		Version:     2,
		Description: "Stato del ciclo di vita",
		SQL: `
		ALTER TABLE reminders
		ADD COLUMN state VARCHAR(10) NOT NULL DEFAULT 'active',
		ADD COLUMN notified_at DATETIME(6) NULL,
		ADD COLUMN completed_at DATETIME(6) NULL`,
	},
	{
		Version:     3,
		Description: "Indice per la query dei reminder in scadenza",
		SQL:         `CREATE INDEX idx_reminders_due ON reminders (frequency, state, date)`,
	},
}

// ApplyMigrations applica tutte le migration necessarie
func (m *MySQLStore) ApplyMigrations(ctx context.Context) error {
	m.logger.Info().Msg("🔄 Controllo migration del database...")

	// Crea la tabella delle migration se non esiste
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("errore nella creazione della tabella migrations: %w", err)
	}

	currentVersion, err := m.currentVersion(ctx)
	if err != nil {
		return fmt.Errorf("errore nel recupero della versione attuale: %w", err)
	}
	m.logger.Info().Int("version", currentVersion).Msg("📊 Versione database attuale")

	applied := 0
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		m.logger.Info().Int("version", migration.Version).Str("description", migration.Description).
			Msg("🔄 Applicando migration")

		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("errore nell'applicazione della migration %d: %w", migration.Version, err)
		}
		applied++
	}

	if applied == 0 {
		m.logger.Info().Msg("✅ Database aggiornato, nessuna migration necessaria")
	} else {
		m.logger.Info().Int("applied", applied).Msg("🎉 Migration applicate con successo")
	}
	return nil
}

func (m *MySQLStore) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MySQLStore) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	return version, err
}

// applyMigration esegue lo statement e registra la versione.
// In MySQL il DDL fa commit implicito, la transazione protegge solo la registrazione.
func (m *MySQLStore) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("errore nell'esecuzione SQL: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		migration.Version, migration.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("errore nel registrare la migration: %w", err)
	}
	return tx.Commit()
}

// AppliedMigrations restituisce le migration già applicate
func (m *MySQLStore) AppliedMigrations(ctx context.Context) ([]Migration, error) {
	var applied []Migration
	err := m.db.SelectContext(ctx, &applied,
		"SELECT version, description FROM schema_migrations ORDER BY version ASC")
	return applied, err
}
