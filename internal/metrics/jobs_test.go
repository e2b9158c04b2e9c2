package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewJobMetrics(reg)
	require.NoError(t, err)

	m.Submitted()
	m.Submitted()
	done := m.Started()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))
	done()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))

	m.Finished(OutcomeCompleted)
	m.Finished(OutcomeFailed)
	m.Finished(OutcomeFailed)
	m.ObserveExtraction(OutcomeCompleted, 2*time.Second)
	m.Reaped(3)
	m.Reaped(0)
	m.Panicked()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.submitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.finished.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.finished.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.reaped))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.panics))
	assert.Equal(t, 1, testutil.CollectAndCount(m.extractionDuration))
}

func TestJobMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewJobMetrics(reg)
	require.NoError(t, err)

	_, err = NewJobMetrics(reg)
	assert.Error(t, err)
}

func TestJobMetrics_Nil(t *testing.T) {
	var m *JobMetrics
	assert.NotPanics(t, func() {
		m.Submitted()
		m.Started()()
		m.Finished(OutcomeAborted)
		m.ObserveExtraction(OutcomeFailed, time.Second)
		m.Reaped(1)
		m.Panicked()
	})
}
