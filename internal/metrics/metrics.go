package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoapply_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoapply_batch_duration_seconds",
			Help:    "Duration of each auto-apply batch run in seconds.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800},
		},
	)
	AttemptStepDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "autoapply_attempt_step_duration_seconds",
			Help:       "Duration of each step in a submission attempt.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step"},
	)
	AttemptOutcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoapply_attempt_outcomes_total",
			Help: "Total number of submission attempts by outcome.",
		},
		[]string{"outcome"},
	)
	SkippedPostingsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoapply_skipped_postings_total",
			Help: "Total number of malformed postings skipped by the eligibility filter.",
		},
	)
	NotificationDeliveryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoapply_notification_deliveries_total",
			Help: "Total number of notification channel deliveries by result.",
		},
		[]string{"channel", "result"},
	)
	ReapedReservationsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoapply_reaped_reservations_total",
			Help: "Total number of abandoned pending reservations reaped.",
		},
	)
)

func StartMetricsServer() {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(AttemptStepDuration)
	prometheus.MustRegister(AttemptOutcomeCounter)
	prometheus.MustRegister(SkippedPostingsCounter)
	prometheus.MustRegister(NotificationDeliveryCounter)
	prometheus.MustRegister(ReapedReservationsCounter)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(":8080", nil))
	}()
}
