package observ

import (
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exports payment lifecycle counters.
type Recorder struct {
	sessions      *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

var _ usecase.Recorder = (*Recorder)(nil)

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_sessions_total",
				Help: "Payment sessions requested from the gateway, by result",
			},
			[]string{"result"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Payment verifications resolved, by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(r.sessions, r.verifications)
	return r
}

func (r *Recorder) SessionCreated(result string) {
	r.sessions.WithLabelValues(result).Inc()
}

func (r *Recorder) VerificationResolved(outcome string) {
	r.verifications.WithLabelValues(outcome).Inc()
}
