package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"whatsapp-reminders/models"
)

// Ticker astrae time.Ticker per poter simulare i cicli nei test
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// NewRealTicker è la factory di default
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// Broadcaster riceve gli eventi da inoltrare ai client WebSocket
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// SchedulerConfig raccoglie i parametri del ciclo di controllo
type SchedulerConfig struct {
	Interval        time.Duration
	Window          time.Duration
	Location        *time.Location
	DailyPolicy     NotifyPolicy
	DayBeforePolicy NotifyPolicy
	// IsolateFailures fa proseguire il ciclo dopo l'errore di un candidato
	IsolateFailures bool
	LedgerSize      int
}

// TickReport riassume un ciclo di controllo
type TickReport struct {
	At         time.Time     `json:"at"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	FiredNow   int           `json:"firedNow"`
	DayBefore  int           `json:"dayBefore"`
	Suppressed int           `json:"suppressed"`
	Failures   int           `json:"failures"`
	Error      string        `json:"error,omitempty"`
}

// ReminderService gestisce il controllo periodico dei reminder
type ReminderService struct {
	store    ReminderStore
	notifier Notifier
	matcher  Matcher
	cfg      SchedulerConfig
	logger   zerolog.Logger

	now       func() time.Time
	newTicker func(time.Duration) Ticker
	metrics   *Metrics
	hub       Broadcaster

	// Registro delle notifiche già inviate oggi, usato dalla politica "once"
	sent *expirable.LRU[string, struct{}]

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	lastReport TickReport
}

// ServiceOption personalizza il ReminderService
type ServiceOption func(*ReminderService)

// WithClock sostituisce time.Now
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ReminderService) { s.now = now }
}

// WithTicker sostituisce la factory del ticker
func WithTicker(factory func(time.Duration) Ticker) ServiceOption {
	return func(s *ReminderService) { s.newTicker = factory }
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *ReminderService) { s.metrics = m }
}

func WithBroadcaster(b Broadcaster) ServiceOption {
	return func(s *ReminderService) { s.hub = b }
}

// NewReminderService crea un nuovo servizio per i reminder
func NewReminderService(store ReminderStore, notifier Notifier, cfg SchedulerConfig, logger zerolog.Logger, opts ...ServiceOption) *ReminderService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DailyPolicy == "" {
		cfg.DailyPolicy = PolicyOnce
	}
	if cfg.DayBeforePolicy == "" {
		cfg.DayBeforePolicy = PolicyOnce
	}
	if cfg.LedgerSize <= 0 {
		cfg.LedgerSize = 10000
	}

	s := &ReminderService{
		store:     store,
		notifier:  notifier,
		matcher:   Matcher{Window: cfg.Window},
		cfg:       cfg,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
		newTicker: NewRealTicker,
		// Le chiavi contengono la data: dopo 48 ore non servono più
		sent: expirable.NewLRU[string, struct{}](cfg.LedgerSize, nil, 48*time.Hour),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Run esegue subito un controllo e poi uno a ogni tick, finché ctx non viene cancellato
func (rs *ReminderService) Run(ctx context.Context) {
	ticker := rs.newTicker(rs.cfg.Interval)
	defer ticker.Stop()

	rs.logger.Info().Dur("interval", rs.cfg.Interval).Str("timezone", rs.cfg.Location.String()).
		Msg("⏰ Servizio reminder avviato")

	// Esegui subito il primo controllo
	rs.runTick(ctx)

	for {
		select {
		case <-ticker.C():
			rs.runTick(ctx)
		case <-ctx.Done():
			rs.logger.Info().Msg("Servizio reminder fermato")
			return
		}
	}
}

// Start avvia Run in una goroutine. Una seconda chiamata non ha effetto.
func (rs *ReminderService) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cancel != nil {
		rs.logger.Warn().Msg("Il servizio reminder è già in esecuzione")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		rs.Run(ctx)
	}(rs.done)
}

// Stop ferma il servizio e attende la fine del ciclo in corso
func (rs *ReminderService) Stop() {
	rs.mu.Lock()
	cancel, done := rs.cancel, rs.done
	rs.cancel, rs.done = nil, nil
	rs.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastReport restituisce il riepilogo dell'ultimo ciclo
func (rs *ReminderService) LastReport() TickReport {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastReport
}

// runTick è il confine degli errori del ciclo: registra e prosegue
func (rs *ReminderService) runTick(ctx context.Context) {
	report, err := rs.Tick(ctx)
	if err != nil {
		rs.logger.Error().Err(err).Int("candidates", report.Candidates).Msg("❌ Ciclo di controllo interrotto")
	}
}

// Tick esegue un singolo ciclo: legge i candidati e li valuta in ordine.
// Senza IsolateFailures il primo errore interrompe il ciclo.
func (rs *ReminderService) Tick(ctx context.Context) (report TickReport, err error) {
	start := time.Now()
	now := rs.now().In(rs.cfg.Location)
	report.At = now
	defer func() {
		report.Duration = time.Since(start)
		rs.mu.Lock()
		rs.lastReport = report
		rs.mu.Unlock()
	}()

	rs.metrics.Ticks.Inc()
	rs.logger.Debug().Time("now", now).Msg("Controllo reminder")

	candidates, err := rs.store.ListDue(ctx, now)
	if err != nil {
		rs.metrics.TickErrors.Inc()
		report.Error = err.Error()
		return report, fmt.Errorf("errore nel recupero dei reminder in scadenza: %w", err)
	}
	report.Candidates = len(candidates)
	rs.metrics.Candidates.Set(float64(len(candidates)))

	for _, r := range candidates {
		if err := rs.process(ctx, r, now, &report); err != nil {
			rs.metrics.TickErrors.Inc()
			report.Failures++
			if !rs.cfg.IsolateFailures {
				report.Error = err.Error()
				return report, err
			}
			rs.logger.Error().Err(err).Str("reminder", r.ID).Msg("❌ Errore sul reminder, continuo con i successivi")
		}
	}

	if report.FiredNow+report.DayBefore > 0 {
		rs.logger.Info().Int("fired_now", report.FiredNow).Int("day_before", report.DayBefore).
			Msg("✅ Notifiche inviate")
	}
	return report, nil
}

// process valuta entrambe le condizioni su un candidato ancora non notificato
func (rs *ReminderService) process(ctx context.Context, r *models.Reminder, now time.Time, report *TickReport) error {
	if r.Notified() {
		return nil
	}

	if rs.matcher.ShouldFireNow(r, now) {
		fired, err := rs.fireNow(ctx, r, now)
		if err != nil {
			return err
		}
		if fired {
			report.FiredNow++
		} else {
			report.Suppressed++
		}
	}

	if rs.matcher.ShouldFireDayBefore(r, now) {
		fired, err := rs.notifyOnce(ctx, r, now, KindDayBefore, rs.cfg.DayBeforePolicy, DayBeforeMessage(r))
		if err != nil {
			return err
		}
		if fired {
			report.DayBefore++
		} else {
			report.Suppressed++
		}
	}
	return nil
}

func (rs *ReminderService) fireNow(ctx context.Context, r *models.Reminder, now time.Time) (bool, error) {
	// I giornalieri restano attivi: l'unica protezione dai doppioni è la politica
	if r.Frequency == models.FrequencyDaily {
		return rs.notifyOnce(ctx, r, now, KindFireNow, rs.cfg.DailyPolicy, FireNowMessage(r))
	}

	if err := rs.send(ctx, r, KindFireNow, FireNowMessage(r)); err != nil {
		return false, err
	}
	_, err := rs.store.MarkNotified(ctx, r.ID)
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		// Completato o notificato da altri tra ListDue e l'invio
		rs.logger.Warn().Err(err).Str("reminder", r.ID).Msg("Reminder già aggiornato, stato non modificato")
	case err != nil:
		return true, fmt.Errorf("errore nel marcare il reminder %s come notificato: %w", r.ID, err)
	}
	return true, nil
}

// notifyOnce invia rispettando la politica: con PolicyOnce al massimo una volta
// per reminder, tipo e giorno di calendario
func (rs *ReminderService) notifyOnce(ctx context.Context, r *models.Reminder, now time.Time, kind string, policy NotifyPolicy, text string) (bool, error) {
	key := ledgerKey(r.ID, kind, now)
	if policy == PolicyOnce && rs.sent.Contains(key) {
		rs.metrics.Suppressed.WithLabelValues(kind).Inc()
		return false, nil
	}
	if err := rs.send(ctx, r, kind, text); err != nil {
		return false, err
	}
	rs.sent.Add(key, struct{}{})
	return true, nil
}

func (rs *ReminderService) send(ctx context.Context, r *models.Reminder, kind, text string) error {
	if err := rs.notifier.Send(ctx, r.Owner, text); err != nil {
		return fmt.Errorf("invio del reminder %s (%s) fallito: %w", r.ID, kind, err)
	}
	rs.metrics.Notifications.WithLabelValues(kind).Inc()
	rs.logger.Info().Str("reminder", r.ID).Str("owner", r.Owner).Str("kind", kind).Msg("🔔 Reminder inviato")

	if rs.hub != nil {
		rs.hub.Broadcast(models.WSTypeReminder, map[string]interface{}{
			"kind":     kind,
			"reminder": r,
		})
	}
	return nil
}

func ledgerKey(id, kind string, now time.Time) string {
	return id + "|" + kind + "|" + models.DateOf(now).String()
}
