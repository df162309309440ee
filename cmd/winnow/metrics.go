package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var contentReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "winnow_content_received",
	Help: "Number of content items received from intake polling",
})

var contentProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "winnow_content_processed",
	Help: "Number of content items evaluated successfully",
})

var contentFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "winnow_content_failed",
	Help: "Number of content items whose evaluation failed",
})

var accountsFlagged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "winnow_accounts_flagged",
	Help: "Number of intake evaluations that produced a non-empty verdict",
})

var currentSeq = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "winnow_current_seq",
	Help: "Newest content timestamp (unix ms) the intake loop has handled",
}, []string{"community"})
