package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserver_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.RecordPresign("put", 10*time.Millisecond, nil)
	obs.RecordPresign("get", 5*time.Millisecond, errors.New("boom"))
	obs.RecordDelete(20*time.Millisecond, 3, nil)
	obs.RecordDelete(20*time.Millisecond, 2, errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(obs.deletedKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.errors.WithLabelValues("presign_get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.errors.WithLabelValues("delete")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.errors.WithLabelValues("presign_put")))
}

func TestPrometheusObserver_ReRegisterReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)
	second, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	second.RecordDelete(time.Millisecond, 4, nil)
	assert.Equal(t, 4.0, testutil.ToFloat64(first.deletedKeys))
}

func TestPrometheusObserver_NilSafe(t *testing.T) {
	var obs *PrometheusObserver
	obs.RecordPresign("put", time.Millisecond, nil)
	obs.RecordDelete(time.Millisecond, 1, nil)
}
