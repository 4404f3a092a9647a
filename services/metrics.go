package services

import "github.com/prometheus/client_golang/prometheus"

var (
	overlayMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_mutations_total",
			Help: "Overlay create/update/delete calls by outcome",
		},
		[]string{"op", "result"},
	)
	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_streams",
			Help: "Number of running ffmpeg conversions",
		},
	)
	overlayWatchers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlay_watchers",
			Help: "Number of connected overlay websocket watchers",
		},
	)
)

// InitPrometheus registers the service metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(overlayMutations)
	prometheus.MustRegister(activeStreams)
	prometheus.MustRegister(overlayWatchers)
}

func recordMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	overlayMutations.WithLabelValues(op, result).Inc()
}
