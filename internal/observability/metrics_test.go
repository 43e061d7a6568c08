package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveClassification("set")
	m.ObservePersist("sqlite", errors.New("boom"))
	m.ObserveRebuild("ok")
	m.ObserveSnapshot("export", true)
	m.SetRecords(3)
	m.APIInflightInc()
	m.APIInflightDec()
	m.ObserveAPI("GET", "/api/students", "200", time.Millisecond)
	assert.Nil(t, m.Registry())
}

func TestPersistFailuresCounted(t *testing.T) {
	m := NewMetrics()
	m.ObservePersist("sqlite", nil)
	m.ObservePersist("sqlite", errors.New("disk full"))
	m.ObservePersist("xlsx", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.persists.WithLabelValues("sqlite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("sqlite")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("xlsx")))
}

func TestRecordsGauge(t *testing.T) {
	m := NewMetrics()
	m.SetRecords(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.records))

	m.ObserveSnapshot("import", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("import", "json")))
}

func TestObserveAPI(t *testing.T) {
	m := NewMetrics()
	m.APIInflightInc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiInflight))
	m.APIInflightDec()
	m.ObserveAPI("GET", "/api/students/:id", "404", 5*time.Millisecond)
	m.ObserveAPI("GET", "/api/students/:id", "404", 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "/api/students/:id", "404")))
}
