package handlers

import (
	"context"
	"time"

	"whatsapp-reminders/models"
)

// ReminderStore è l'interfaccia che ogni backend di persistenza deve soddisfare.
// Get, MarkNotified e MarkCompleted restituiscono nil, nil se il reminder non esiste.
type ReminderStore interface {
	Create(ctx context.Context, owner string, draft models.Draft) (*models.Reminder, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.Reminder, error)
	Get(ctx context.Context, id string) (*models.Reminder, error)
	MarkNotified(ctx context.Context, id string) (*models.Reminder, error)
	MarkCompleted(ctx context.Context, id string) (*models.Reminder, error)
	Delete(ctx context.Context, id string) (bool, error)
	// ListDue restituisce i candidati del tick: giornalieri non notificati più i
	// reminder non giornalieri attivi con data tra oggi e domani (rispetto a now)
	ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	Close() error
}

// Notifier consegna un messaggio di testo a un destinatario
type Notifier interface {
	Send(ctx context.Context, to, text string) error
}
