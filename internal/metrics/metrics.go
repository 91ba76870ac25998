// Package metrics exposes Prometheus counters for the engine's observable
// events: units served, damage incurred, and coders disqualified
// ("game over"), wired directly into the handlers that produce them
// rather than logged as free-text lines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UnitsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotinder",
		Name:      "units_served_total",
		Help:      "Number of units served to coders, by ruleset.",
	}, []string{"ruleset"})

	DamageIncurred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotinder",
		Name:      "damage_incurred_total",
		Help:      "Total damage points assigned to coders, by job.",
	}, []string{"job_id"})

	GameOvers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "annotinder",
		Name:      "game_overs_total",
		Help:      "Number of coders disqualified for exceeding max damage, by job.",
	}, []string{"job_id"})

	AnnotationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "annotinder",
		Name:      "annotations_submitted_total",
		Help:      "Total annotations accepted across all jobs.",
	})
)
