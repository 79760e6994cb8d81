package metrics_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/connecteddrive/core/factory"
	metrics "github.com/kilianp07/connecteddrive/core/metrics"
	_ "github.com/kilianp07/connecteddrive/infra/metrics"
)

func TestNewMetricsSinkDefaultsToNop(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)
}

func TestNewMetricsSinkUnknownType(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}

func TestMetricsConfigFromYAMLKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	data := `sinks:
  - type: nop
  - type: jsonl
    conf:
      path: ` + filepath.Join(dir, "states.jsonl") + `
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	require.Len(t, cfg.Sinks, 2)

	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	multi, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", s)
	t.Cleanup(func() { _ = multi.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, multi.RecordSensorState(metrics.SensorStateEvent{UniqueID: "WBA1-mileage", VIN: "WBA1", Attribute: "mileage", Value: 10, Time: now}))
	got, err := multi.Query(context.Background(), metrics.HistoryQuery{VIN: "WBA1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WBA1-mileage", got[0].UniqueID)
}

func TestMetricsConfigFromJSON(t *testing.T) {
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"sqlite","conf":{"path":":memory:"}}]}`), &cfg))
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "sqlite", cfg.Sinks[0].Type)
	assert.Equal(t, ":memory:", cfg.Sinks[0].Conf["path"])
}
