package models

import "time"

// DueRange restituisce l'intervallo di date [oggi, oggi+24h] valutato nel fuso di now
func DueRange(now time.Time) (Date, Date) {
	return DateOf(now), DateOf(now.Add(24 * time.Hour))
}

// IsDueCandidate riproduce in memoria il filtro di ListDue, per i backend che
// non possono esprimerlo come query
func (r *Reminder) IsDueCandidate(now time.Time) bool {
	if r.Notified() {
		return false
	}
	if r.Frequency == FrequencyDaily {
		return true
	}
	if r.Completed() {
		return false
	}
	from, to := DueRange(now)
	return !r.Date.Before(from) && !r.Date.After(to)
}
