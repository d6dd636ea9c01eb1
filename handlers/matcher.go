package handlers

import (
	"fmt"
	"time"

	"whatsapp-reminders/models"
)

// DefaultWindow è l'ampiezza della finestra di invio, a partire dal minuto del reminder
const DefaultWindow = 5 * time.Minute

// Matcher decide se un candidato va notificato in un certo istante.
// now deve essere già espresso nel fuso configurato del processo.
type Matcher struct {
	Window time.Duration
}

func (m Matcher) windowMinutes() int {
	if m.Window <= 0 {
		return int(DefaultWindow / time.Minute)
	}
	return int(m.Window / time.Minute)
}

// ShouldFireNow è vero se now cade nella finestra [HH:MM, HH:MM+window) dello
// stesso orario. La finestra non attraversa il cambio d'ora: per 14:58 valgono
// solo i minuti 58 e 59. Per i non giornalieri serve anche la stessa data.
func (m Matcher) ShouldFireNow(r *models.Reminder, now time.Time) bool {
	hour, minute, err := r.Clock()
	if err != nil {
		return false
	}
	if now.Hour() != hour || now.Minute() < minute || now.Minute() >= minute+m.windowMinutes() {
		return false
	}
	if r.Frequency == models.FrequencyDaily {
		return true
	}
	return models.DateOf(now).Equal(r.Date)
}

// ShouldFireDayBefore è vero per tutto il giorno che precede la data del reminder.
// Non si applica ai giornalieri.
func (m Matcher) ShouldFireDayBefore(r *models.Reminder, now time.Time) bool {
	if r.Frequency == models.FrequencyDaily {
		return false
	}
	return r.Date.AddDays(-1).Equal(models.DateOf(now))
}

// NotifyPolicy stabilisce quante volte una notifica ripetibile può partire nello
// stesso giorno
type NotifyPolicy string

const (
	// PolicyEveryTick invia a ogni ciclo in cui la condizione è vera
	PolicyEveryTick NotifyPolicy = "every_tick"
	// PolicyOnce invia al massimo una volta per reminder e giorno di calendario
	PolicyOnce NotifyPolicy = "once"
)

// ParseNotifyPolicy valida il valore letto dalla configurazione
func ParseNotifyPolicy(s string) (NotifyPolicy, error) {
	switch p := NotifyPolicy(s); p {
	case PolicyEveryTick, PolicyOnce:
		return p, nil
	case "":
		return PolicyOnce, nil
	}
	return "", fmt.Errorf("politica di notifica sconosciuta %q (valori ammessi: %s, %s)", s, PolicyEveryTick, PolicyOnce)
}
