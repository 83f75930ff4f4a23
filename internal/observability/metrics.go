package observability

import "github.com/prometheus/client_golang/prometheus"

// Reconciliation outcomes recorded on EventsTotal. Every incoming stream
// event ends in exactly one of these.
const (
	OutcomeAppended    = "appended"
	OutcomeDuplicate   = "duplicate"
	OutcomeEcho        = "echo"
	OutcomeUnread      = "unread"
	OutcomeUnknownConv = "unknown_conversation"
	OutcomeDropped     = "dropped"
)

var (
	// EventsTotal counts stream events by reconciliation outcome. The
	// outcome set is fixed, so cardinality stays bounded.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Stream events processed, by reconciliation outcome.",
		},
		[]string{"outcome"},
	)

	// ResyncsTotal counts full-state resyncs by what triggered them.
	ResyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_resyncs_total",
			Help: "Full-state resyncs, by trigger reason.",
		},
		[]string{"reason"},
	)

	// ResyncDuration records how long a full resync takes end to end.
	ResyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_resync_duration_seconds",
			Help:    "Duration of full-state resyncs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BotRepliesTotal counts autoresponder replies. result is "generated"
	// when the generator answered and "fallback" when the fixed reply was
	// used instead.
	BotRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_bot_replies_total",
			Help: "Autoresponder replies sent, by result.",
		},
		[]string{"result"},
	)

	// StreamConnected gauges the feed connection: 1 connected, 0 not.
	StreamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_stream_connected",
			Help: "Whether the realtime feed is connected (1) or not (0).",
		},
	)

	// MessagesSentTotal counts messages sent through the engine.
	MessagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_messages_sent_total",
			Help: "Messages sent through the send path.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		ResyncsTotal,
		ResyncDuration,
		BotRepliesTotal,
		StreamConnected,
		MessagesSentTotal,
	)
}
