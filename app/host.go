package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/connecteddrive/core/entitystatus"
	"github.com/kilianp07/connecteddrive/core/logger"
	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
	coremon "github.com/kilianp07/connecteddrive/core/monitoring"
	"github.com/kilianp07/connecteddrive/core/sensor"
	"github.com/kilianp07/connecteddrive/infra/hass"
)

// Host is the sensor platform. Every update is written to the status
// store, the metrics sink and, when enabled, Home Assistant.
type Host struct {
	store entitystatus.Store
	sink  coremetrics.MetricsSink
	hass  *hass.Publisher
	clock clock.Clock
	log   logger.Logger

	mu       sync.RWMutex
	adapters map[string]*sensor.Adapter
}

// NewHost returns a host. pub may be nil.
func NewHost(store entitystatus.Store, sink coremetrics.MetricsSink, pub *hass.Publisher, clk clock.Clock, log logger.Logger) *Host {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Host{store: store, sink: sink, hass: pub, clock: clk, log: log, adapters: make(map[string]*sensor.Adapter)}
}

// Add registers adapters and publishes their initial state. Unique ids
// must not collide with already registered sensors.
func (h *Host) Add(adapters []*sensor.Adapter) error {
	h.mu.Lock()
	for i, a := range adapters {
		if _, dup := h.adapters[a.UniqueID()]; dup {
			for _, added := range adapters[:i] {
				delete(h.adapters, added.UniqueID())
			}
			h.mu.Unlock()
			return fmt.Errorf("duplicate sensor %s", a.UniqueID())
		}
		h.adapters[a.UniqueID()] = a
	}
	h.mu.Unlock()

	for _, a := range adapters {
		h.ScheduleUpdate(a)
	}
	return nil
}

// ScheduleUpdate publishes the adapter's current state.
func (h *Host) ScheduleUpdate(a *sensor.Adapter) {
	snap := a.Snapshot()
	now := h.clock.Now()
	h.store.Set(snap, now)
	if err := h.sink.RecordSensorState(stateEvent(snap, now)); err != nil {
		h.log.Warnf("record %s: %v", snap.UniqueID, err)
	}
	if h.hass == nil {
		return
	}
	if err := h.hass.PublishState(snap); err != nil {
		h.log.Errorf("publish %s: %v", snap.UniqueID, err)
		coremon.CaptureException(err, map[string]string{"module": "hass", "sensor": snap.UniqueID})
	}
}

// HandleError records a failed refresh. The last known state stays visible.
func (h *Host) HandleError(a *sensor.Adapter, err error) {
	now := h.clock.Now()
	h.log.Errorf("sensor %s: %v", a.UniqueID(), err)
	h.store.RecordError(a.UniqueID(), err, now)
	if rec, ok := h.sink.(coremetrics.SensorErrorRecorder); ok {
		ev := coremetrics.SensorErrorEvent{UniqueID: a.UniqueID(), Attribute: a.Attribute().String(), Err: err.Error(), Time: now}
		if rerr := rec.RecordSensorError(ev); rerr != nil {
			h.log.Warnf("record error %s: %v", a.UniqueID(), rerr)
		}
	}
	coremon.CaptureException(err, map[string]string{"module": "sensor", "sensor": a.UniqueID()})
}

// Adapters returns the registered sensors ordered by unique id.
func (h *Host) Adapters() []*sensor.Adapter {
	h.mu.RLock()
	out := make([]*sensor.Adapter, 0, len(h.adapters))
	for _, a := range h.adapters {
		out = append(out, a)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID() < out[j].UniqueID() })
	return out
}

// RemoveAll unsubscribes every sensor from its account.
func (h *Host) RemoveAll() {
	h.mu.Lock()
	adapters := h.adapters
	h.adapters = make(map[string]*sensor.Adapter)
	h.mu.Unlock()
	for _, a := range adapters {
		a.Removed()
	}
}

func stateEvent(s sensor.Snapshot, at time.Time) coremetrics.SensorStateEvent {
	return coremetrics.SensorStateEvent{
		UniqueID:  s.UniqueID,
		Name:      s.Name,
		Account:   s.Account,
		VIN:       s.VIN,
		Attribute: s.Attribute,
		Value:     s.Value,
		Unit:      s.Unit,
		Icon:      s.Icon,
		Time:      at,
	}
}
