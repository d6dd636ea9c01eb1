// Package storetest contiene la suite di conformità eseguita su ogni
// implementazione di handlers.ReminderStore.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/handlers"
	"whatsapp-reminders/models"
)

// Factory crea uno store vuoto; la chiusura è a carico della suite
type Factory func(t *testing.T) handlers.ReminderStore

const (
	alice = "5511999990001@s.whatsapp.net"
	bob   = "5511999990002@s.whatsapp.net"
)

// Now è l'istante di riferimento usato per ListDue
var Now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

// Draft costruisce una bozza completa per i test
func Draft(text string, date models.Date, clock string, freq models.Frequency) models.Draft {
	return models.Draft{Text: text, Date: &date, Time: clock, Frequency: freq}
}

// Run esegue tutti i casi della suite
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s handlers.ReminderStore)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateRejectsInvalidDraft", testCreateRejectsInvalidDraft},
		{"ListByOwner", testListByOwner},
		{"MarkNotified", testMarkNotified},
		{"MarkCompleted", testMarkCompleted},
		{"MissingID", testMissingID},
		{"Delete", testDelete},
		{"ListDue", testListDue},
		{"NotifiedLeavesListDue", testNotifiedLeavesListDue},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			c.fn(t, s)
		})
	}
}

func testCreateAndGet(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.Date{Year: 2026, Month: time.May, Day: 15}

	created, err := s.Create(ctx, alice, Draft("reunião", day, "14:00", models.FrequencyOnce))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.StateActive, created.State)
	assert.False(t, created.Notified())
	assert.False(t, created.Completed())

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, alice, got.Owner)
	assert.Equal(t, "reunião", got.Text)
	assert.Equal(t, day, got.Date)
	assert.Equal(t, "14:00", got.Time)
	assert.Equal(t, models.FrequencyOnce, got.Frequency)
	assert.Nil(t, got.NotifiedAt)
	assert.Nil(t, got.CompletedAt)
}

func testCreateRejectsInvalidDraft(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.DateOf(Now)

	_, err := s.Create(ctx, alice, Draft("  ", day, "10:00", models.FrequencyOnce))
	assert.Error(t, err)
	_, err = s.Create(ctx, alice, Draft("x", day, "25:00", models.FrequencyOnce))
	assert.Error(t, err)
	_, err = s.Create(ctx, alice, models.Draft{Text: "x", Time: "10:00", Frequency: models.FrequencyOnce})
	assert.Error(t, err)
	_, err = s.Create(ctx, "", Draft("x", day, "10:00", models.FrequencyOnce))
	assert.Error(t, err)

	list, err := s.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testListByOwner(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.DateOf(Now)

	var want []string
	for _, text := range []string{"primeiro", "segundo", "terceiro"} {
		r, err := s.Create(ctx, alice, Draft(text, day, "09:00", models.FrequencyOnce))
		require.NoError(t, err)
		want = append(want, r.ID)
	}
	_, err := s.Create(ctx, bob, Draft("outro", day, "09:00", models.FrequencyOnce))
	require.NoError(t, err)

	list, err := s.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, want, ids(list))

	list, err = s.ListByOwner(ctx, "nessuno@s.whatsapp.net")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testMarkNotified(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.DateOf(Now)

	once, err := s.Create(ctx, alice, Draft("pagar conta", day, "10:00", models.FrequencyOnce))
	require.NoError(t, err)

	updated, err := s.MarkNotified(ctx, once.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.StateNotified, updated.State)
	assert.NotNil(t, updated.NotifiedAt)

	_, err = s.MarkNotified(ctx, once.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	daily, err := s.Create(ctx, alice, Draft("remédio", day, "08:00", models.FrequencyDaily))
	require.NoError(t, err)
	_, err = s.MarkNotified(ctx, daily.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	got, err := s.Get(ctx, daily.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, got.State)
}

func testMarkCompleted(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.DateOf(Now)

	active, err := s.Create(ctx, alice, Draft("a", day, "10:00", models.FrequencyOnce))
	require.NoError(t, err)
	done, err := s.MarkCompleted(ctx, active.ID)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, done.Completed())
	assert.False(t, done.Notified())
	assert.NotNil(t, done.CompletedAt)

	_, err = s.MarkCompleted(ctx, active.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = s.MarkNotified(ctx, active.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	notified, err := s.Create(ctx, alice, Draft("b", day, "10:00", models.FrequencyWeekly))
	require.NoError(t, err)
	_, err = s.MarkNotified(ctx, notified.ID)
	require.NoError(t, err)
	done, err = s.MarkCompleted(ctx, notified.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed())
	assert.True(t, done.Notified())
}

func testMissingID(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	const missing = "00000000-0000-0000-0000-000000000000"

	got, err := s.Get(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.MarkNotified(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.MarkCompleted(ctx, missing)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := s.Delete(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDelete(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	day := models.DateOf(Now)

	r, err := s.Create(ctx, alice, Draft("apagar", day, "10:00", models.FrequencyOnce))
	require.NoError(t, err)
	keep, err := s.Create(ctx, alice, Draft("manter", day, "11:00", models.FrequencyOnce))
	require.NoError(t, err)

	ok, err := s.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, ids(list))

	got, err := s.MarkCompleted(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.MarkNotified(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	due, err := s.ListDue(ctx, Now)
	require.NoError(t, err)
	assert.NotContains(t, ids(due), r.ID)
}

func testListDue(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	today := models.DateOf(Now)

	create := func(owner, text string, date models.Date, freq models.Frequency) *models.Reminder {
		r, err := s.Create(ctx, owner, Draft(text, date, "10:00", freq))
		require.NoError(t, err)
		return r
	}

	dueToday := create(alice, "hoje", today, models.FrequencyOnce)
	dueTomorrow := create(alice, "amanhã", today.AddDays(1), models.FrequencyMonthly)
	create(alice, "depois de amanhã", today.AddDays(2), models.FrequencyOnce)
	create(alice, "ontem", today.AddDays(-1), models.FrequencyOnce)
	dailyOld := create(alice, "remédio", today.AddDays(-30), models.FrequencyDaily)
	otherOwner := create(bob, "de outro", today, models.FrequencyWeekly)

	notified := create(alice, "já notificado", today, models.FrequencyWeekly)
	_, err := s.MarkNotified(ctx, notified.ID)
	require.NoError(t, err)

	completed := create(alice, "concluído", today.AddDays(1), models.FrequencyOnce)
	_, err = s.MarkCompleted(ctx, completed.ID)
	require.NoError(t, err)

	// Il ramo giornaliero guarda solo notified: resta candidato anche se completato
	dailyCompleted := create(alice, "diário concluído", today, models.FrequencyDaily)
	_, err = s.MarkCompleted(ctx, dailyCompleted.ID)
	require.NoError(t, err)

	due, err := s.ListDue(ctx, Now)
	require.NoError(t, err)
	assert.Equal(t, []string{dueToday.ID, dueTomorrow.ID, dailyOld.ID, otherOwner.ID, dailyCompleted.ID}, ids(due))
}

func testNotifiedLeavesListDue(t *testing.T, s handlers.ReminderStore) {
	ctx := context.Background()
	today := models.DateOf(Now)

	for _, freq := range []models.Frequency{models.FrequencyOnce, models.FrequencyWeekly, models.FrequencyMonthly} {
		r, err := s.Create(ctx, alice, Draft(string(freq), today, "10:00", freq))
		require.NoError(t, err)

		due, err := s.ListDue(ctx, Now)
		require.NoError(t, err)
		assert.Contains(t, ids(due), r.ID)

		_, err = s.MarkNotified(ctx, r.ID)
		require.NoError(t, err)

		for _, at := range []time.Time{Now, Now.Add(time.Hour), Now.Add(-24 * time.Hour)} {
			due, err = s.ListDue(ctx, at)
			require.NoError(t, err)
			assert.NotContains(t, ids(due), r.ID)
		}
	}
}

func ids(list []*models.Reminder) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
