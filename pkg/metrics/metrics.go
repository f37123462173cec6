package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AppendsTotal counts every record a local writer-core has appended,
	// by outcome (accepted, rejected).
	AppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomengine_appends_total",
			Help: "Total number of records appended to the local writer-core",
		},
		[]string{"outcome"},
	)

	// LineariseLagSeconds observes how long a record sits in a writer-core
	// before autobase folds it into the view.
	LineariseLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roomengine_linearise_lag_seconds",
			Help:    "Time between a record's append and its linearisation",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReplicationBacklog tracks, per known writer-core, how many records
	// are stored locally but not yet linearised into the view, as sampled
	// from the Source (pkg/room reports autobase.Base.Backlog).
	ReplicationBacklog = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomengine_replication_backlog",
			Help: "Records stored locally but not yet linearised, by core",
		},
		[]string{"core"},
	)

	// WritersTotal tracks admitted writer-cores by status.
	WritersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomengine_writers_total",
			Help: "Total number of writer keys by status",
		},
		[]string{"status"}, // "active" | "removed"
	)

	// InvitesIssuedTotal counts invites created via createInvite.
	InvitesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roomengine_invites_issued_total",
			Help: "Total number of invites issued by this node",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AppendsTotal,
		LineariseLagSeconds,
		ReplicationBacklog,
		WritersTotal,
		InvitesIssuedTotal,
	)
}

// Handler returns the Prometheus HTTP scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one operation and reports its duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
