package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/models"
)

type serviceFixture struct {
	store    ReminderStore
	notifier *fakeNotifier
	clock    *fakeClock
	metrics  *Metrics
	hub      *fakeBroadcaster
	service  *ReminderService
}

func newServiceFixture(t *testing.T, cfg SchedulerConfig, opts ...ServiceOption) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:    newTestStore(t),
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: at(today, 10, 0)},
		metrics:  NewMetrics(prometheus.NewRegistry()),
		hub:      &fakeBroadcaster{},
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	opts = append([]ServiceOption{WithClock(f.clock.Now), WithMetrics(f.metrics), WithBroadcaster(f.hub)}, opts...)
	f.service = NewReminderService(f.store, f.notifier, cfg, nopLogger, opts...)
	return f
}

func (f *serviceFixture) tickAt(t *testing.T, now time.Time) TickReport {
	t.Helper()
	f.clock.Set(now)
	report, err := f.service.Tick(context.Background())
	require.NoError(t, err)
	return report
}

func TestTickWithoutCandidates(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})

	report := f.tickAt(t, at(today, 10, 0))
	assert.Equal(t, 0, report.Candidates)
	assert.Empty(t, f.notifier.Sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Ticks))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.TickErrors))
}

func TestTickFiresOnceReminderAndMarksNotified(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})
	r := mustCreate(t, f.store, alice, "pagar conta", today, "10:00", models.FrequencyOnce)

	report := f.tickAt(t, at(today, 10, 2))
	assert.Equal(t, 1, report.FiredNow)
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice, sent[0].To)
	assert.Equal(t, FireNowMessage(r), sent[0].Text)
	assert.Contains(t, sent[0].Text, "única vez")
	assert.Contains(t, sent[0].Text, r.ID)

	stored, err := f.store.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNotified, stored.State)

	// Ancora nella finestra, ma ormai fuori dai candidati
	report = f.tickAt(t, at(today, 10, 3))
	assert.Equal(t, 0, report.Candidates)
	assert.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues(KindFireNow)))

	require.Len(t, f.hub.events, 1)
	assert.Equal(t, models.WSTypeReminder, f.hub.events[0].Type)
}

func TestTickOutsideWindowSendsNothing(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})
	mustCreate(t, f.store, alice, "pagar conta", today, "10:00", models.FrequencyOnce)

	report := f.tickAt(t, at(today, 10, 5))
	assert.Equal(t, 1, report.Candidates)
	assert.Empty(t, f.notifier.Sent())
}

func TestDailyPolicy(t *testing.T) {
	t.Run("every tick repeats inside the window", func(t *testing.T) {
		f := newServiceFixture(t, SchedulerConfig{DailyPolicy: PolicyEveryTick})
		mustCreate(t, f.store, alice, "remédio", today.AddDays(-3), "08:00", models.FrequencyDaily)

		f.tickAt(t, at(today, 8, 0))
		f.tickAt(t, at(today, 8, 2))
		f.tickAt(t, at(today, 8, 4))
		assert.Len(t, f.notifier.Sent(), 3)
	})

	t.Run("once sends one message per day", func(t *testing.T) {
		f := newServiceFixture(t, SchedulerConfig{DailyPolicy: PolicyOnce})
		r := mustCreate(t, f.store, alice, "remédio", today.AddDays(-3), "08:00", models.FrequencyDaily)

		f.tickAt(t, at(today, 8, 0))
		report := f.tickAt(t, at(today, 8, 3))
		assert.Equal(t, 1, report.Suppressed)
		assert.Len(t, f.notifier.Sent(), 1)

		// Il giorno dopo riparte
		f.tickAt(t, at(today.AddDays(1), 8, 1))
		assert.Len(t, f.notifier.Sent(), 2)

		stored, err := f.store.Get(context.Background(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateActive, stored.State)
		assert.False(t, stored.Notified())
	})
}

func TestDayBeforePolicy(t *testing.T) {
	t.Run("once", func(t *testing.T) {
		f := newServiceFixture(t, SchedulerConfig{DayBeforePolicy: PolicyOnce})
		r := mustCreate(t, f.store, alice, "dentista", today.AddDays(1), "15:00", models.FrequencyOnce)

		report := f.tickAt(t, at(today, 9, 0))
		assert.Equal(t, 1, report.DayBefore)
		f.tickAt(t, at(today, 15, 0))
		f.tickAt(t, at(today, 23, 55))

		sent := f.notifier.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, DayBeforeMessage(r), sent[0].Text)
		assert.Contains(t, sent[0].Text, "16/10/2026")

		// L'avviso non cambia lo stato: il giorno dopo parte la notifica principale
		f.tickAt(t, at(today.AddDays(1), 15, 1))
		sent = f.notifier.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, FireNowMessage(r), sent[1].Text)
	})

	t.Run("every tick", func(t *testing.T) {
		f := newServiceFixture(t, SchedulerConfig{DayBeforePolicy: PolicyEveryTick})
		mustCreate(t, f.store, alice, "dentista", today.AddDays(1), "15:00", models.FrequencyMonthly)

		f.tickAt(t, at(today, 9, 0))
		f.tickAt(t, at(today, 9, 5))
		assert.Len(t, f.notifier.Sent(), 2)
	})
}

func TestTickAbortsOnFirstFailure(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})
	f.notifier.failFor = map[string]bool{alice: true}
	mustCreate(t, f.store, alice, "primeiro", today, "10:00", models.FrequencyOnce)
	second := mustCreate(t, f.store, bob, "segundo", today, "10:00", models.FrequencyOnce)

	f.clock.Set(at(today, 10, 1))
	report, err := f.service.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Failures)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, f.notifier.Sent())

	stored, err := f.store.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, stored.State)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TickErrors))
}

func TestTickIsolatesFailures(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{IsolateFailures: true})
	f.notifier.failFor = map[string]bool{alice: true}
	first := mustCreate(t, f.store, alice, "primeiro", today, "10:00", models.FrequencyOnce)
	mustCreate(t, f.store, bob, "segundo", today, "10:00", models.FrequencyOnce)

	report := f.tickAt(t, at(today, 10, 1))
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.FiredNow)
	require.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, bob, f.notifier.Sent()[0].To)

	// Il reminder fallito resta attivo e verrà riprovato
	stored, err := f.store.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, stored.State)
}

func TestTickStoreFailure(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})
	f.service.store = brokenStore{f.store}

	report, err := f.service.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, report.Error, "database non raggiungibile")
	assert.Equal(t, report, f.service.LastReport())
}

func TestTickProcessesInStoreOrder(t *testing.T) {
	f := newServiceFixture(t, SchedulerConfig{})
	for _, text := range []string{"um", "dois", "três"} {
		mustCreate(t, f.store, alice, text, today, "10:00", models.FrequencyOnce)
	}

	f.tickAt(t, at(today, 10, 0))
	var order []string
	for _, m := range f.notifier.Sent() {
		order = append(order, strings.SplitN(strings.TrimPrefix(m.Text, "🔔 *LEMBRETE*: "), "\n", 2)[0])
	}
	assert.Equal(t, []string{"um", "dois", "três"}, order)
}

func TestTickUsesConfiguredLocation(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	f := newServiceFixture(t, SchedulerConfig{Location: brt})
	mustCreate(t, f.store, alice, "jantar", today, "20:00", models.FrequencyOnce)

	// 23:01 UTC sono le 20:01 a São Paulo
	report := f.tickAt(t, time.Date(2026, 10, 15, 23, 1, 0, 0, time.UTC))
	assert.Equal(t, 1, report.FiredNow)
}

func TestRunDrivenByTicker(t *testing.T) {
	ticker := newFakeTicker()
	f := newServiceFixture(t, SchedulerConfig{DailyPolicy: PolicyEveryTick},
		WithTicker(func(time.Duration) Ticker { return ticker }))
	mustCreate(t, f.store, alice, "remédio", today, "10:00", models.FrequencyDaily)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.service.Run(ctx)
	}()

	// Il primo controllo parte subito, senza attendere il ticker
	require.Eventually(t, func() bool { return len(f.notifier.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		ticker.ch <- time.Time{}
	}
	require.Eventually(t, func() bool { return len(f.notifier.Sent()) == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	select {
	case <-ticker.stopped:
	default:
		t.Fatal("ticker non fermato")
	}
}

func TestStartStop(t *testing.T) {
	ticker := newFakeTicker()
	f := newServiceFixture(t, SchedulerConfig{}, WithTicker(func(time.Duration) Ticker { return ticker }))

	f.service.Start()
	f.service.Start()
	require.Eventually(t, func() bool { return testutil.ToFloat64(f.metrics.Ticks) == 1 }, time.Second, 5*time.Millisecond)

	f.service.Stop()
	f.service.Stop()
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Ticks))
}
