package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_event_processed",
	Help: "Number of evaluation runs, by trigger type",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_event_errors",
	Help: "Number of evaluation runs which failed",
}, []string{"type"})

var historyFetchCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "winnow_history_fetches",
	Help: "Number of full account-history fetches (API calls)",
})

var evaluatorHitCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_evaluator_hits",
	Help: "Number of evaluator hits, by module",
}, []string{"module"})

var evaluatorErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_evaluator_errors",
	Help: "Number of evaluator execution failures, by module",
}, []string{"module"})

var transitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_status_transitions",
	Help: "Number of classification status transitions",
}, []string{"from", "to"})
