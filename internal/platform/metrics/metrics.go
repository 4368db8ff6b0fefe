package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reconciliation jobs. New
// registers on the default registry and must be called once, from main.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	RecordsProcessed  *prometheus.CounterVec
	RecordFailures    *prometheus.CounterVec
	CardsRegistered   prometheus.Counter
	CardsRenamed      prometheus.Counter
	CardsDeactivated  prometheus.Counter
	PersonsExpelled   prometheus.Counter
	RequestsPurged    prometheus.Counter
	RequestsFinalized prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mealcard_job_runs_total",
			Help: "Job runs by job name and result.",
		}, []string{"job", "result"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mealcard_job_run_duration_seconds",
			Help:    "Wall-clock duration of job runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		RecordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mealcard_records_processed_total",
			Help: "Snapshot records processed, by job.",
		}, []string{"job"}),
		RecordFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mealcard_record_failures_total",
			Help: "Per-record failures rolled back and skipped, by job.",
		}, []string{"job"}),
		CardsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_cards_registered_total",
			Help: "New cards inserted from directory snapshots.",
		}),
		CardsRenamed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_cards_renamed_total",
			Help: "Cards whose surrogate id was replaced in place.",
		}),
		CardsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_cards_deactivated_total",
			Help: "Cards swept inactive after disappearing from a snapshot.",
		}),
		PersonsExpelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_persons_expelled_total",
			Help: "Persons expelled by the deactivation cascade.",
		}),
		RequestsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_requests_purged_total",
			Help: "Future unfinalized requests deleted by the cascade.",
		}),
		RequestsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mealcard_requests_finalized_total",
			Help: "Requests locked by the finalization barrier.",
		}),
	}
}
