package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tipi di notifica, usati come etichetta kind
const (
	KindFireNow   = "fire_now"
	KindDayBefore = "day_before"
)

// Metrics raccoglie le metriche dello scheduler
type Metrics struct {
	Ticks         prometheus.Counter
	Notifications *prometheus.CounterVec
	Suppressed    *prometheus.CounterVec
	TickErrors    prometheus.Counter
	Candidates    prometheus.Gauge
}

// NewMetrics crea le metriche e le registra su reg. Con reg nil non registra nulla.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_ticks_total",
			Help: "Numero di cicli di controllo eseguiti",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Notifiche inviate, per tipo",
		}, []string{"kind"}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_notifications_suppressed_total",
			Help: "Notifiche saltate perché già inviate nello stesso giorno",
		}, []string{"kind"}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_tick_errors_total",
			Help: "Errori durante i cicli di controllo",
		}),
		Candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reminder_candidates",
			Help: "Candidati restituiti da ListDue nell'ultimo ciclo",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.Notifications, m.Suppressed, m.TickErrors, m.Candidates)
	}
	return m
}
