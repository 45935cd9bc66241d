package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	played          *prometheus.CounterVec
	errors          *prometheus.CounterVec
	interruptCycles prometheus.Counter
	pending         *prometheus.GaugeVec
}

// newMetrics creates the scheduler metrics. With a nil Registerer the
// metrics are not registered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		played: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeaudio",
			Name:      "messages_played_total",
			Help:      "Number of messages played per channel",
		}, []string{"channel"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeaudio",
			Name:      "message_errors_total",
			Help:      "Number of messages which could not be played",
		}, []string{"channel", "kind"}),
		interruptCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "edgeaudio",
			Name:      "interrupt_cycles_total",
			Help:      "Number of completed interrupt cycles",
		}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgeaudio",
			Name:      "pending_messages",
			Help:      "Number of pending messages per channel",
		}, []string{"channel"}),
	}
}
