// Package metrics содержит Prometheus-метрики сервиса начисления наград.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerOperations считает операции движка по результату.
var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reward",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger engine operations by operation and result.",
}, []string{"operation", "result"})

// LedgerOperationDuration измеряет длительность операций движка.
var LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "reward",
	Subsystem: "ledger",
	Name:      "operation_duration_seconds",
	Help:      "Ledger engine operation latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// CoinsMoved суммирует начисленные и списанные монеты.
var CoinsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reward",
	Subsystem: "ledger",
	Name:      "coins_total",
	Help:      "Coins credited or debited, by reason.",
}, []string{"reason"})

var NotificationsQueued = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "reward",
	Subsystem: "notify",
	Name:      "queue_depth",
	Help:      "Events waiting for delivery.",
})

// NotificationsDelivered считает попытки доставки уведомлений по результату.
var NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reward",
	Subsystem: "notify",
	Name:      "deliveries_total",
	Help:      "Notification deliveries by result (sent, failed, dropped, skipped).",
}, []string{"result"})

// ChatCommands считает обработанные команды чата.
var ChatCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reward",
	Subsystem: "bot",
	Name:      "commands_total",
	Help:      "Chat commands handled, by command.",
}, []string{"command"})

var ChatRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "reward",
	Subsystem: "bot",
	Name:      "rate_limited_total",
	Help:      "Chat commands rejected by the per-chat rate limiter.",
})
