// Package metrics holds the Prometheus collectors of the ledger server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "splitledger"

var RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rpc",
	Name:      "requests_total",
	Help:      "Total RPC calls by procedure and result code.",
}, []string{"procedure", "code"})

var RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "rpc",
	Name:      "duration_seconds",
	Help:      "RPC handling latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"procedure"})

var ExpensesCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "expenses_created_total",
	Help:      "Total expenses recorded.",
})

var SettlementsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "settlements_recorded_total",
	Help:      "Total settlements recorded, by whether they paid the split off.",
}, []string{"kind"})

var SettlementsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "settlements_rejected_total",
	Help:      "Total settlement attempts rejected, by error category.",
}, []string{"reason"})

var BalanceTransfers = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "balance_transfers",
	Help:      "Number of transfers in each computed settlement plan.",
	Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
})

var BalanceComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "balance_compute_seconds",
	Help:      "Time to load a group's history and compute its balances.",
	Buckets:   prometheus.DefBuckets,
})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Domain events published, by type and outcome.",
}, []string{"type", "outcome"})
