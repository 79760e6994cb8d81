package sensor

import (
	"fmt"
	"sync"

	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/model"
)

const lastUpdateLayout = "2006-01-02T15:04:05"

// Host is the home-automation side adapters report to.
type Host interface {
	// ScheduleUpdate asks the host to persist and display the adapter's
	// current state.
	ScheduleUpdate(a *Adapter)
}

// ErrorHandler is implemented by hosts that handle failed refreshes.
type ErrorHandler interface {
	HandleError(a *Adapter, err error)
}

// Snapshot is a read-only view of an adapter.
type Snapshot struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Account    string         `json:"account"`
	VIN        string         `json:"vin"`
	Attribute  string         `json:"attribute"`
	Value      any            `json:"state"`
	Icon       string         `json:"icon,omitempty"`
	Unit       string         `json:"unit_of_measurement,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

// Adapter exposes one attribute of one vehicle as a sensor entity.
type Adapter struct {
	account  *account.Account
	vehicle  *model.Vehicle
	attr     Attribute
	name     string
	uniqueID string

	mu          sync.RWMutex
	refreshed   bool
	value       any
	icon        string
	lastUpdate  any
	unsubscribe func()
}

// NewAdapter creates the sensor for attr of vehicle v.
func NewAdapter(acc *account.Account, v *model.Vehicle, attr Attribute) *Adapter {
	return &Adapter{
		account:  acc,
		vehicle:  v,
		attr:     attr,
		name:     fmt.Sprintf("%s %s", v.Name, attr),
		uniqueID: fmt.Sprintf("%s-%s", v.VIN, attr),
	}
}

// UniqueID returns "<VIN>-<attribute>".
func (a *Adapter) UniqueID() string { return a.uniqueID }

// Name returns "<vehicle name> <attribute>".
func (a *Adapter) Name() string { return a.name }

// Attribute returns the attribute the adapter exposes.
func (a *Adapter) Attribute() Attribute { return a.attr }

// Vehicle returns the vehicle the adapter reads from.
func (a *Adapter) Vehicle() *model.Vehicle { return a.vehicle }

// Account returns the owning account.
func (a *Adapter) Account() *account.Account { return a.account }

// ShouldPoll is always false: adapters are updated by their account.
func (a *Adapter) ShouldPoll() bool { return false }

// Value returns the cached value: an int, a float64, a string or nil.
func (a *Adapter) Value() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Icon returns the icon computed at the last Refresh, or from the current
// vehicle state before the first one.
func (a *Adapter) Icon() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.refreshed {
		return a.attr.Icon(a.vehicle.State())
	}
	return a.icon
}

// Unit returns the unit of measurement, empty when there is none.
func (a *Adapter) Unit() string {
	return a.attr.Unit()
}

// ExtraAttributes returns the time of the last vehicle update, without
// time zone, and the vehicle name.
func (a *Adapter) ExtraAttributes() map[string]any {
	a.mu.RLock()
	last := a.lastUpdate
	if !a.refreshed {
		last = lastUpdate(a.vehicle.State())
	}
	a.mu.RUnlock()
	return map[string]any{
		"last_update": last,
		"car":         a.vehicle.Name,
	}
}

func lastUpdate(s *model.State) any {
	if s.Timestamp.IsZero() {
		return nil
	}
	return s.Timestamp.Format(lastUpdateLayout)
}

// Refresh re-reads the attribute from the vehicle's current state. Value,
// icon and last update are taken from the same state snapshot.
func (a *Adapter) Refresh() error {
	st := a.vehicle.State()
	v, err := a.attr.Extract(st)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", a.uniqueID, err)
	}
	icon := a.attr.Icon(st)
	a.mu.Lock()
	a.refreshed = true
	a.value = v
	a.icon = icon
	a.lastUpdate = lastUpdate(st)
	a.mu.Unlock()
	return nil
}

// Added subscribes the adapter to its account's push updates. Each update
// refreshes the adapter and then asks host to publish it.
func (a *Adapter) Added(host Host) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		return
	}
	a.unsubscribe = a.account.Subscribe(func() { a.handleUpdate(host) })
}

// Removed cancels the account subscription.
func (a *Adapter) Removed() {
	a.mu.Lock()
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (a *Adapter) handleUpdate(host Host) {
	if err := a.Refresh(); err != nil {
		if eh, ok := host.(ErrorHandler); ok {
			eh.HandleError(a, err)
		}
		return
	}
	host.ScheduleUpdate(a)
}

// Snapshot returns the adapter's view as of its last Refresh.
func (a *Adapter) Snapshot() Snapshot {
	return Snapshot{
		UniqueID:   a.uniqueID,
		Name:       a.name,
		Account:    a.account.Name(),
		VIN:        a.vehicle.VIN,
		Attribute:  a.attr.String(),
		Value:      a.Value(),
		Icon:       a.Icon(),
		Unit:       a.Unit(),
		Attributes: a.ExtraAttributes(),
	}
}
