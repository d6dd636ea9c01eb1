package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/handlers"
	"whatsapp-reminders/models"
	"whatsapp-reminders/storetest"
)

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) handlers.ReminderStore {
		s, err := NewBoltStore(filepath.Join(t.TempDir(), "reminders.db"))
		require.NoError(t, err)
		return s
	})
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reminders.db")
	owner := "5511999990001@s.whatsapp.net"
	tomorrow := models.DateOf(storetest.Now).AddDays(1)

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	created, err := s.Create(ctx, owner, storetest.Draft("persistente", tomorrow, "07:30", models.FrequencyOnce))
	require.NoError(t, err)
	_, err = s.MarkNotified(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tomorrow, got.Date)
	assert.Equal(t, models.StateNotified, got.State)
	assert.True(t, got.Notified())

	// La sequenza riparte dall'ultimo valore: l'ordine di creazione resta stabile
	second, err := s.Create(ctx, owner, storetest.Draft("nuovo", tomorrow, "08:00", models.FrequencyOnce))
	require.NoError(t, err)
	list, err := s.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}
