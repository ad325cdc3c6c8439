package activities

import "github.com/prometheus/client_golang/prometheus"

var (
	recorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobility",
		Subsystem: "activities",
		Name:      "recorded_total",
		Help:      "Activities recorded, by type.",
	}, []string{"type"})

	rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mobility",
		Subsystem: "activities",
		Name:      "rejected_total",
		Help:      "Activity declarations and updates rejected, by error code.",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(recorded, rejected)
}
