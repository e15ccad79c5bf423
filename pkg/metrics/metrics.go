package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubedeck_broker_token_requests_total",
		Help: "Total number of token requests handled by the broker",
	}, []string{"mode", "outcome"})
	InteractiveLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubedeck_broker_interactive_logins_total",
		Help: "Total number of interactive authentication flows started",
	}, []string{"outcome"})
	RecordStoreFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubedeck_broker_record_store_failures_total",
		Help: "Total number of auth record store operations that failed",
	}, []string{"op"})
	QueuePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kubedeck_broker_queue_pending",
		Help: "Number of broker operations enqueued or running",
	})
	SessionResumptionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kubedeck_broker_session_resumption_failures_total",
		Help: "Times a persisted auth record could not be resumed silently and an interactive prompt was required",
	})
)

func init() {
	prometheus.MustRegister(TokenRequests)
	prometheus.MustRegister(InteractiveLogins)
	prometheus.MustRegister(RecordStoreFailures)
	prometheus.MustRegister(QueuePending)
	prometheus.MustRegister(SessionResumptionFailures)
}
