package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/api/trips", "POST", 201, 15*time.Millisecond)
	m.RecordRequest("/api/trips", "POST", 201, 5*time.Millisecond)
	m.RecordLedgerMutation("CREDIT")
	m.RecordTransition("COMPLETED")
	m.RecordLockContention("local")
	m.RecordCreditsAccrued("PUBLIC_TRANSPORT", 30)
	m.RecordCreditsAccrued("WORK_FROM_HOME", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/trips", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerMutations.WithLabelValues("CREDIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockContention.WithLabelValues("local")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.creditsAccrued.WithLabelValues("PUBLIC_TRANSPORT")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.creditsAccrued))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordLedgerMutation("CREDIT")
		m.RecordLockContention("redis")
	})
}
