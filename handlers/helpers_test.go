package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"whatsapp-reminders/models"
	"whatsapp-reminders/persistence"
)

const (
	alice = "5511999990001@s.whatsapp.net"
	bob   = "5511999990002@s.whatsapp.net"
)

// 15/10/2026 è il giorno di riferimento di tutti i test
var today = models.Date{Year: 2026, Month: time.October, Day: 15}

func at(d models.Date, hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) ReminderStore {
	t.Helper()
	s, err := persistence.NewBoltStore(filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreate(t *testing.T, s ReminderStore, owner, text string, date models.Date, clock string, freq models.Frequency) *models.Reminder {
	t.Helper()
	r, err := s.Create(context.Background(), owner, models.Draft{Text: text, Date: &date, Time: clock, Frequency: freq})
	require.NoError(t, err)
	return r
}

type sentMessage struct {
	To   string
	Text string
}

// fakeNotifier registra gli invii; gli invii verso failFor falliscono
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
}

func (n *fakeNotifier) Send(_ context.Context, to, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errors.New("invio rifiutato")
	}
	n.sent = append(n.sent, sentMessage{To: to, Text: text})
	return nil
}

func (n *fakeNotifier) Sent() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

// fakeClock è un orologio spostabile a mano
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) Broadcast(msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{msgType, payload})
}

// brokenStore fa fallire ListDue
type brokenStore struct {
	ReminderStore
}

func (brokenStore) ListDue(context.Context, time.Time) ([]*models.Reminder, error) {
	return nil, errors.New("database non raggiungibile")
}

func (brokenStore) Create(context.Context, string, models.Draft) (*models.Reminder, error) {
	return nil, errors.New("database non raggiungibile")
}

var nopLogger = zerolog.Nop()
