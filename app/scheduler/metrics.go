package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes counters for the two scheduler loops. Registration happens
// once per process via promauto on the default registry.
type Metrics struct {
	SyncCyclesTotal        prometheus.Counter
	SyncCyclesSkipped      prometheus.Counter
	SyncCycleDuration      prometheus.Histogram
	SyncResultsTotal       *prometheus.CounterVec
	CampaignCyclesTotal    prometheus.Counter
	CampaignCyclesSkipped  prometheus.Counter
	CampaignTransitions    *prometheus.CounterVec
	DriftedUsersTotal      prometheus.Counter
	OrganizationsPerCycle  prometheus.Histogram
}

// NewMetrics registers and returns the scheduler metric set
func NewMetrics() *Metrics {
	return &Metrics{
		SyncCyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "sync_cycles_total",
			Help:      "Number of sync cycles started.",
		}),
		SyncCyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "sync_cycles_skipped_total",
			Help:      "Number of sync ticks skipped because the previous cycle was still running.",
		}),
		SyncCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "sync_cycle_duration_seconds",
			Help:      "Wall time of a full sync cycle across all organizations.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		SyncResultsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "sync_results_total",
			Help:      "Per-user sync outcomes by resulting state.",
		}, []string{"status"}),
		CampaignCyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "campaign_cycles_total",
			Help:      "Number of campaign transition cycles started.",
		}),
		CampaignCyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "campaign_cycles_skipped_total",
			Help:      "Number of campaign ticks skipped because the previous cycle was still running.",
		}),
		CampaignTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "campaign_transitions_total",
			Help:      "Campaign lifecycle transitions performed, by kind.",
		}, []string{"transition"}),
		DriftedUsersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "drifted_users_total",
			Help:      "Users whose deployed signature no longer matched the recorded hash.",
		}),
		OrganizationsPerCycle: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clearsign",
			Subsystem: "scheduler",
			Name:      "organizations_per_cycle",
			Help:      "Syncable organizations processed per cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}
