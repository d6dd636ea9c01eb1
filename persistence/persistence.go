// Package persistence contiene i backend di ReminderStore alternativi a MySQL:
// bbolt (file locale, nessun servizio esterno) e Redis.
package persistence

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"

	"whatsapp-reminders/models"
)

func encodeToBinary(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(data)
	return buf.Bytes(), err
}

func decodeBinary(data []byte, target interface{}) error {
	buf := bytes.NewBuffer(data)
	return gob.NewDecoder(buf).Decode(target)
}

// seqKey codifica la sequenza big-endian, così il cursore scorre in ordine di creazione
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// filterDue applica il filtro di ListDue mantenendo l'ordine di inserimento
func filterDue(all []*models.Reminder, now time.Time) []*models.Reminder {
	var due []*models.Reminder
	for _, r := range all {
		if r.IsDueCandidate(now) {
			due = append(due, r)
		}
	}
	return due
}
