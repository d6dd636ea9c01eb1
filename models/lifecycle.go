package models

import (
	"errors"
	"fmt"
)

// State rappresenta lo stato nel ciclo di vita di un reminder.
// Lo stato "deleted" non esiste: la cancellazione rimuove il record.
type State string

const (
	StateActive    State = "active"    // Appena creato
	StateNotified  State = "notified"  // Notifica principale inviata (solo non giornalieri)
	StateCompleted State = "completed" // Completato dall'utente
)

// Event è una transizione richiesta sul ciclo di vita
type Event string

const (
	EventNotify   Event = "notify"
	EventComplete Event = "complete"
)

// ErrInvalidTransition viene restituito quando una transizione non è ammessa
var ErrInvalidTransition = errors.New("transizione di stato non valida")

// Transition calcola il nuovo stato. Le transizioni sono solo in avanti:
// active -> notified, active|notified -> completed.
func Transition(from State, event Event) (State, error) {
	switch event {
	case EventNotify:
		if from == StateActive {
			return StateNotified, nil
		}
	case EventComplete:
		if from == StateActive || from == StateNotified {
			return StateCompleted, nil
		}
	default:
		return from, fmt.Errorf("evento sconosciuto %q: %w", event, ErrInvalidTransition)
	}
	return from, fmt.Errorf("%s da %s: %w", event, from, ErrInvalidTransition)
}
