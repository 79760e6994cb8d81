package metrics

import (
	"context"
	"errors"
	"io"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSensorState forwards the state to every sink. All sinks are called
// even when one fails; the errors are joined.
func (m *MultiSink) RecordSensorState(ev SensorStateEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordSensorState(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordSensorError forwards refresh failures when supported by the sink.
func (m *MultiSink) RecordSensorError(ev SensorErrorEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SensorErrorRecorder); ok {
			if err := rec.RecordSensorError(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordPoll forwards poll cycles when supported by the sink.
func (m *MultiSink) RecordPoll(ev PollEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PollRecorder); ok {
			if err := rec.RecordPoll(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Query returns the result of the first sink able to answer history queries.
func (m *MultiSink) Query(ctx context.Context, q HistoryQuery) ([]SensorStateEvent, error) {
	for _, s := range m.Sinks {
		if h, ok := s.(HistoryStore); ok {
			return h.Query(ctx, q)
		}
	}
	return nil, ErrNoHistory
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
