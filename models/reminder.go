package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Frequency rappresenta la ricorrenza di un reminder
type Frequency string

const (
	FrequencyOnce    Frequency = "once"    // Una sola volta
	FrequencyDaily   Frequency = "daily"   // Ogni giorno alla stessa ora
	FrequencyWeekly  Frequency = "weekly"  // Ogni settimana
	FrequencyMonthly Frequency = "monthly" // Ogni mese
)

// Valid indica se la frequenza è una di quelle supportate
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// DefaultTime è l'orario usato quando il testo non ne contiene uno
const DefaultTime = "12:00"

// Reminder rappresenta un promemoria salvato
type Reminder struct {
	ID          string     `json:"id" db:"id"`
	Owner       string     `json:"owner" db:"owner"` // JID WhatsApp del destinatario
	Text        string     `json:"text" db:"text"`
	Date        Date       `json:"date" db:"date"`
	Time        string     `json:"time" db:"time"` // HH:MM, 24 ore
	Frequency   Frequency  `json:"frequency" db:"frequency"`
	State       State      `json:"state" db:"state"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty" db:"notified_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// Notified indica se il reminder ha già ricevuto la notifica principale.
// Resta vero anche dopo il completamento.
func (r *Reminder) Notified() bool {
	return r.State == StateNotified || r.NotifiedAt != nil
}

// Completed indica se il reminder è stato completato
func (r *Reminder) Completed() bool {
	return r.State == StateCompleted
}

// Clock restituisce ora e minuto configurati
func (r *Reminder) Clock() (int, int, error) {
	return ParseClock(r.Time)
}

// Apply applica un evento del ciclo di vita aggiornando stato e timestamp
func (r *Reminder) Apply(event Event, at time.Time) error {
	// I giornalieri non passano mai a notified: devono scattare ogni giorno
	if event == EventNotify && r.Frequency == FrequencyDaily {
		return fmt.Errorf("reminder %s giornaliero: %w", r.ID, ErrInvalidTransition)
	}
	next, err := Transition(r.State, event)
	if err != nil {
		return fmt.Errorf("reminder %s: %w", r.ID, err)
	}
	r.State = next
	switch event {
	case EventNotify:
		r.NotifiedAt = &at
	case EventComplete:
		r.CompletedAt = &at
	}
	r.UpdatedAt = at
	return nil
}

// Draft è il risultato del parser prima del salvataggio
type Draft struct {
	Text      string    `json:"text"`
	Date      *Date     `json:"date,omitempty"`
	Time      string    `json:"time,omitempty"`
	Frequency Frequency `json:"frequency"`
}

// Materialize completa i campi mancanti: data di oggi e orario di default
func (d Draft) Materialize(now time.Time) Draft {
	if d.Date == nil {
		today := DateOf(now)
		d.Date = &today
	}
	if d.Time == "" {
		d.Time = DefaultTime
	}
	if d.Frequency == "" {
		d.Frequency = FrequencyOnce
	}
	return d
}

// Validate controlla che la bozza possa diventare un Reminder
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("il testo del reminder non può essere vuoto")
	}
	if d.Date == nil {
		return fmt.Errorf("data mancante")
	}
	if _, _, err := ParseClock(d.Time); err != nil {
		return err
	}
	if !d.Frequency.Valid() {
		return fmt.Errorf("frequenza non valida: %q", d.Frequency)
	}
	return nil
}

// NewReminder crea un reminder attivo a partire da una bozza già completa.
// L'ID è un UUID, citabile dall'utente nei comandi.
func NewReminder(owner string, d Draft, now time.Time) (*Reminder, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("destinatario mancante")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Reminder{
		ID:        uuid.New().String(),
		Owner:     owner,
		Text:      strings.TrimSpace(d.Text),
		Date:      *d.Date,
		Time:      d.Time,
		Frequency: d.Frequency,
		State:     StateActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ParseClock interpreta un orario HH:MM
func ParseClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("orario non valido: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("ora non valida: %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minuti non validi: %q", s)
	}
	return hour, minute, nil
}

// FormatClock formatta ora e minuto come HH:MM
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
