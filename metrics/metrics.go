// Package metrics holds the prometheus instruments of the engine. They are
// registered with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "post"

var (
	// LabelsWritten counts labels persisted by initializations.
	LabelsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "init",
			Name:      "labels_written_total",
			Help:      "Number of labels written to the data directory",
		},
	)

	// InitResults counts finished initializations by result.
	InitResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "init",
			Name:      "results_total",
			Help:      "Number of initializations by result",
		},
		[]string{"result"},
	)

	// LabelsScanned counts labels read by proof searches.
	LabelsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proving",
			Name:      "labels_scanned_total",
			Help:      "Number of labels scanned while searching for proofs",
		},
		[]string{"scheme"},
	)

	// PowDuration observes how long the proof of work of a nonce group takes.
	PowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proving",
			Name:      "pow_duration_seconds",
			Help:      "Duration of the proof of work search of a nonce group",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// ProvingDuration observes complete proof searches.
	ProvingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proving",
			Name:      "duration_seconds",
			Help:      "Duration of proof searches",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 12),
		},
		[]string{"outcome"},
	)

	// VerifyResults counts verifications by result.
	VerifyResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifying",
			Name:      "results_total",
			Help:      "Number of proof verifications by result",
		},
		[]string{"result"},
	)

	// VerifyDuration observes single proof verifications.
	VerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verifying",
			Name:      "duration_seconds",
			Help:      "Duration of proof verifications",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(LabelsWritten)
	prometheus.MustRegister(InitResults)
	prometheus.MustRegister(LabelsScanned)
	prometheus.MustRegister(PowDuration)
	prometheus.MustRegister(ProvingDuration)
	prometheus.MustRegister(VerifyResults)
	prometheus.MustRegister(VerifyDuration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
