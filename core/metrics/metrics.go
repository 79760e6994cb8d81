package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SensorStateEvent is a rendered sensor state.
type SensorStateEvent struct {
	UniqueID  string    `json:"unique_id"`
	Name      string    `json:"name"`
	Account   string    `json:"account"`
	VIN       string    `json:"vin"`
	Attribute string    `json:"attribute"`
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Time      time.Time `json:"time"`
}

// Numeric returns the value as float64 when it is a number.
func (e SensorStateEvent) Numeric() (float64, bool) {
	switch v := e.Value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

// Text formats the value for text based stores. Nil values yield "".
func (e SensorStateEvent) Text() string {
	switch v := e.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// MetricsSink records sensor states.
type MetricsSink interface {
	RecordSensorState(ev SensorStateEvent) error
}

// SensorErrorEvent captures a failed refresh.
type SensorErrorEvent struct {
	UniqueID  string
	Attribute string
	Err       string
	Time      time.Time
}

// SensorErrorRecorder records refresh failures.
type SensorErrorRecorder interface {
	RecordSensorError(ev SensorErrorEvent) error
}

// PollEvent summarises one telemetry poll cycle.
type PollEvent struct {
	Requested int
	Responses int
	Timeouts  int
	Latency   time.Duration
	Time      time.Time
}

// PollRecorder records telemetry poll cycles.
type PollRecorder interface {
	RecordPoll(ev PollEvent) error
}

// HistoryQuery filters stored sensor states.
type HistoryQuery struct {
	Start     time.Time
	End       time.Time
	UniqueID  string
	VIN       string
	Attribute string
	Limit     int
}

// Matches reports whether ev satisfies the query filters, ignoring Limit.
func (q HistoryQuery) Matches(ev SensorStateEvent) bool {
	if !q.Start.IsZero() && ev.Time.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ev.Time.After(q.End) {
		return false
	}
	if q.UniqueID != "" && ev.UniqueID != q.UniqueID {
		return false
	}
	if q.VIN != "" && ev.VIN != q.VIN {
		return false
	}
	if q.Attribute != "" && ev.Attribute != q.Attribute {
		return false
	}
	return true
}

// HistoryStore is implemented by sinks able to return past states.
type HistoryStore interface {
	Query(ctx context.Context, q HistoryQuery) ([]SensorStateEvent, error)
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSensorState(SensorStateEvent) error { return nil }
func (NopSink) RecordSensorError(SensorErrorEvent) error { return nil }
func (NopSink) RecordPoll(PollEvent) error               { return nil }
