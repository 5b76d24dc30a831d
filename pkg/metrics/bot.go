package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		messagesReceivedTotal,
		commandsTotal,
		lookupsTotal,
		lookupLatencyMs,
		repliesTotal,
		tmdbUp,
		buildInfo,
	)
}

var (
	messagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_messages_received_total",
			Help: "Text messages received per channel.",
		},
		[]string{"channel"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_commands_total",
			Help: "Bot commands by name and whether they were handled.",
		},
		[]string{"command", "handled"},
	)

	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_lookups_total",
			Help: "Movie lookups by outcome (found/not_found/service_error).",
		},
		[]string{"outcome"},
	)

	lookupLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebot_lookup_latency_ms",
			Help:    "Movie lookup latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"outcome"},
	)

	repliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_replies_total",
			Help: "Replies by delivery kind (photo/text/plain) and status (sent/failed).",
		},
		[]string{"kind", "status"},
	)

	tmdbUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviebot_tmdb_up",
			Help: "1 if the last TMDB health check succeeded, 0 otherwise.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviebot_build_info",
			Help: "A constant metric with the build version as a label.",
		},
		[]string{"version"},
	)
)

func IncMessageReceived(channel string) {
	messagesReceivedTotal.WithLabelValues(norm(channel)).Inc()
}

func IncCommand(command string, handled bool) {
	label := "false"
	if handled {
		label = "true"
	}
	commandsTotal.WithLabelValues(norm(command), label).Inc()
}

func ObserveLookup(outcome string, latency time.Duration) {
	outcome = norm(outcome)
	lookupsTotal.WithLabelValues(outcome).Inc()
	lookupLatencyMs.WithLabelValues(outcome).Observe(float64(latency.Milliseconds()))
}

func IncReply(kind string, sent bool) {
	status := "failed"
	if sent {
		status = "sent"
	}
	if kind == "" {
		kind = "unknown"
	}
	repliesTotal.WithLabelValues(norm(kind), status).Inc()
}

func SetTMDBUp(up bool) {
	if up {
		tmdbUp.Set(1)
		return
	}
	tmdbUp.Set(0)
}

func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}
