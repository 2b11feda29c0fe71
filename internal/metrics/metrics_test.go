package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/touch", "200", 0.05)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/touch", "200"))
	assert.Equal(t, float64(1), count)
}

func TestRecordTouchOutcomes(t *testing.T) {
	TouchesTotal.Reset()

	RecordTouch("lent")
	RecordTouch("lent")
	RecordTouch("returned")
	RecordTouch("rejected_busy")

	assert.Equal(t, float64(2), testutil.ToFloat64(TouchesTotal.WithLabelValues("lent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TouchesTotal.WithLabelValues("returned")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TouchesTotal.WithLabelValues("rejected_busy")))
}

func TestRecordLending(t *testing.T) {
	LendingsTotal.Reset()

	RecordLending("lend")
	RecordLending("return")
	RecordLending("return")

	assert.Equal(t, float64(1), testutil.ToFloat64(LendingsTotal.WithLabelValues("lend")))
	assert.Equal(t, float64(2), testutil.ToFloat64(LendingsTotal.WithLabelValues("return")))
}

func TestRecordRevert(t *testing.T) {
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardledger_reverts_total_test",
			Help: "Total number of 30-second revert operations",
		},
	)

	oldCounter := RevertsTotal
	RevertsTotal = testCounter
	defer func() { RevertsTotal = oldCounter }()

	RecordRevert()
	RecordRevert()

	assert.Equal(t, float64(2), testutil.ToFloat64(testCounter))
}

func TestRecordImport(t *testing.T) {
	importedCounter := prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cardledger_history_rows_imported_total_test"},
	)
	dedupedCounter := prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cardledger_history_rows_deduped_total_test"},
	)

	oldImported, oldDeduped := HistoryRowsImportedTotal, HistoryRowsDedupedTotal
	HistoryRowsImportedTotal, HistoryRowsDedupedTotal = importedCounter, dedupedCounter
	defer func() {
		HistoryRowsImportedTotal, HistoryRowsDedupedTotal = oldImported, oldDeduped
	}()

	RecordImport(5, 3)
	RecordImport(2, 0)

	assert.Equal(t, float64(7), testutil.ToFloat64(importedCounter))
	assert.Equal(t, float64(3), testutil.ToFloat64(dedupedCounter))
}

func TestRecordMergeOp(t *testing.T) {
	MergeOpsTotal.Reset()

	RecordMergeOp("merge")
	RecordMergeOp("split")
	RecordMergeOp("undo")
	RecordMergeOp("merge")

	assert.Equal(t, float64(2), testutil.ToFloat64(MergeOpsTotal.WithLabelValues("merge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(MergeOpsTotal.WithLabelValues("split")))
	assert.Equal(t, float64(1), testutil.ToFloat64(MergeOpsTotal.WithLabelValues("undo")))
}

func TestSetCardBalance(t *testing.T) {
	CardBalance.Reset()

	SetCardBalance("No.12", 4300)
	assert.Equal(t, float64(4300), testutil.ToFloat64(CardBalance.WithLabelValues("No.12")))

	SetCardBalance("No.12", 4000)
	assert.Equal(t, float64(4000), testutil.ToFloat64(CardBalance.WithLabelValues("No.12")))
}

func TestSetNotifyQueueLength(t *testing.T) {
	SetNotifyQueueLength(10)
	assert.Equal(t, float64(10), testutil.ToFloat64(NotifyQueueLength))

	SetNotifyQueueLength(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(NotifyQueueLength))
}
