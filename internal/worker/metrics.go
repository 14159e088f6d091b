package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_events_processed_total",
		Help: "Total number of queue items processed successfully",
	})

	eventsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_events_retried_total",
		Help: "Total number of queue items rescheduled for retry",
	})

	eventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_events_skipped_total",
		Help: "Total number of events drained without processing (unknown type)",
	})

	awardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_awards_issued_total",
		Help: "Total number of new awards inserted",
	})

	badgesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_badges_uploaded_total",
		Help: "Total number of badge SVGs uploaded to the object store",
	})

	loopErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "achievements_loop_errors_total",
		Help: "Total number of supervisor iterations that failed outright",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "achievements_batch_duration_seconds",
		Help:    "Duration of one claimed batch, claim to markDone",
		Buckets: prometheus.DefBuckets,
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "achievements_batch_size",
		Help:    "Number of items claimed per batch",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	})
)
