package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
)

// PromSink exposes sensor values as Prometheus gauges.
type PromSink struct {
	value   *prometheus.GaugeVec
	updates *prometheus.CounterVec
	errors  *prometheus.CounterVec
	polls   *prometheus.CounterVec
}

// NewPromSink registers sensor metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	value := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connecteddrive_sensor_value",
		Help: "Current numeric value of a vehicle sensor",
	}, []string{"unique_id", "account", "vin", "attribute", "unit"})
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connecteddrive_sensor_updates_total",
		Help: "Number of sensor state updates",
	}, []string{"attribute"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connecteddrive_sensor_errors_total",
		Help: "Number of failed sensor refreshes",
	}, []string{"attribute"})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connecteddrive_poll_results_total",
		Help: "Outcome of vehicle status polls",
	}, []string{"result"})

	var err error
	if value, err = register(reg, value); err != nil {
		return nil, err
	}
	if updates, err = register(reg, updates); err != nil {
		return nil, err
	}
	if errs, err = register(reg, errs); err != nil {
		return nil, err
	}
	if polls, err = register(reg, polls); err != nil {
		return nil, err
	}
	return &PromSink{value: value, updates: updates, errors: errs, polls: polls}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSensorState sets the gauge for numeric values and removes it when
// the value became unknown. Non numeric states only count as updates.
func (s *PromSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	s.updates.WithLabelValues(ev.Attribute).Inc()
	labels := prometheus.Labels{
		"unique_id": ev.UniqueID,
		"account":   ev.Account,
		"vin":       ev.VIN,
		"attribute": ev.Attribute,
		"unit":      ev.Unit,
	}
	if v, ok := ev.Numeric(); ok {
		s.value.With(labels).Set(v)
	} else if ev.Value == nil {
		s.value.Delete(labels)
	}
	return nil
}

// RecordSensorError counts refresh failures.
func (s *PromSink) RecordSensorError(ev coremetrics.SensorErrorEvent) error {
	s.errors.WithLabelValues(ev.Attribute).Inc()
	return nil
}

// RecordPoll counts poll responses and timeouts.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	s.polls.WithLabelValues("response").Add(float64(ev.Responses))
	s.polls.WithLabelValues("timeout").Add(float64(ev.Timeouts))
	return nil
}
