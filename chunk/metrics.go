package chunk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var jobInvocationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_invocations_total",
	Help: "Number of budgeted job invocations started.",
}, []string{"job"})

var jobItemCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_items_total",
	Help: "Number of worklist items processed across all invocations.",
}, []string{"job"})

var jobItemErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_item_errors_total",
	Help: "Number of worklist items whose processing returned an error.",
}, []string{"job"})

var jobFinalizeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_finalizations_total",
	Help: "Number of job runs that drained their worklist and finalized.",
}, []string{"job"})

var jobDispatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_dispatches_total",
	Help: "Number of scheduled invocations handed to a job handler.",
}, []string{"job"})

var jobErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "winnow_job_errors_total",
	Help: "Number of job invocations that returned an error.",
}, []string{"job"})
