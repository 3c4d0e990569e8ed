package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK               = "ok"
	OutcomePartial          = "partial"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeInvalid          = "invalid"
	OutcomeUnprocessable    = "unprocessable"
	OutcomeMethodNotAllowed = "method_not_allowed"

	resultSuccess = "success"
	resultFailure = "failure"
)

type Health struct {
	Received       *prometheus.CounterVec
	StoreWrites    *prometheus.CounterVec
	AnalyticsSends *prometheus.CounterVec
	ArchivePuts    *prometheus.CounterVec
	Published      *prometheus.CounterVec
}

func NewHealth(reg prometheus.Registerer) *Health {
	factory := promauto.With(reg)
	return &Health{
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_received_total",
			Help: "Total number of webhook calls received, by outcome",
		}, []string{"outcome"}),
		StoreWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_store_writes_total",
			Help: "Total number of sale records written to the store",
		}, []string{"result"}),
		AnalyticsSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_analytics_sends_total",
			Help: "Total number of events sent to the analytics collector",
		}, []string{"result"}),
		ArchivePuts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_archive_puts_total",
			Help: "Total number of raw payloads archived",
		}, []string{"result"}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_published_total",
			Help: "Total number of sale records published downstream",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}
