package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TouchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_touches_total",
			Help: "Total number of card touches by outcome",
		},
		[]string{"outcome"},
	)

	LendingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_lendings_total",
			Help: "Total number of lend and return operations",
		},
		[]string{"direction"},
	)

	RevertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_reverts_total",
			Help: "Total number of 30-second revert operations",
		},
	)

	HistoryRowsImportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_history_rows_imported_total",
			Help: "Total number of card transactions imported as ledger details",
		},
	)

	HistoryRowsDedupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_history_rows_deduped_total",
			Help: "Total number of card transactions skipped as already imported",
		},
	)

	IncompleteHistoriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_incomplete_histories_total",
			Help: "Total number of imports flagged as possibly truncated",
		},
	)

	InconsistenciesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_inconsistencies_found_total",
			Help: "Total number of balance-chain breaks reported",
		},
	)

	MergeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardledger_merge_ops_total",
			Help: "Total number of merge, split and undo operations",
		},
		[]string{"op"},
	)

	CardBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardledger_card_balance_yen",
			Help: "Last reconciled balance per card",
		},
		[]string{"card_number"},
	)

	NotifyQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardledger_notify_queue_length",
			Help: "Current length of the UI notification list",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTouch(outcome string) {
	TouchesTotal.WithLabelValues(outcome).Inc()
}

func RecordLending(direction string) {
	LendingsTotal.WithLabelValues(direction).Inc()
}

func RecordRevert() {
	RevertsTotal.Inc()
}

func RecordImport(imported, deduped int) {
	HistoryRowsImportedTotal.Add(float64(imported))
	HistoryRowsDedupedTotal.Add(float64(deduped))
}

func RecordIncompleteHistory() {
	IncompleteHistoriesTotal.Inc()
}

func RecordInconsistencies(n int) {
	InconsistenciesFound.Add(float64(n))
}

func RecordMergeOp(op string) {
	MergeOpsTotal.WithLabelValues(op).Inc()
}

func SetCardBalance(cardNumber string, balance int64) {
	CardBalance.WithLabelValues(cardNumber).Set(float64(balance))
}

func SetNotifyQueueLength(n int64) {
	NotifyQueueLength.Set(float64(n))
}
