package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/connecteddrive/core/logger"
	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/internal/eventbus"
)

// ErrUnknownVehicle is returned when a state update targets a VIN the
// account does not own.
var ErrUnknownVehicle = errors.New("unknown vehicle")

// StateUpdate carries a fresh snapshot for one vehicle.
type StateUpdate struct {
	VIN   string
	State *model.State
}

// VehicleProvider lists the vehicles registered on a remote account.
type VehicleProvider interface {
	Vehicles(ctx context.Context) ([]*model.Vehicle, error)
}

type listener struct {
	id int
	fn func()
}

// Account owns a set of vehicles and notifies listeners whenever one of
// them received a new state. Listeners are invoked sequentially, never
// concurrently.
type Account struct {
	name     string
	provider VehicleProvider
	log      logger.Logger

	mu        sync.RWMutex
	vehicles  []*model.Vehicle
	byVIN     map[string]*model.Vehicle
	listeners []listener
	nextID    int

	notifyMu sync.Mutex
}

// New creates an account. Vehicles are fetched by LoadVehicles.
func New(name string, provider VehicleProvider, log logger.Logger) *Account {
	return &Account{
		name:     name,
		provider: provider,
		log:      log,
		byVIN:    make(map[string]*model.Vehicle),
	}
}

// Name returns the account name.
func (a *Account) Name() string { return a.name }

// LoadVehicles asks the provider for the account's vehicles and replaces
// the current list.
func (a *Account) LoadVehicles(ctx context.Context) error {
	if a.provider == nil {
		return fmt.Errorf("account %s: no vehicle provider", a.name)
	}
	vs, err := a.provider.Vehicles(ctx)
	if err != nil {
		return fmt.Errorf("account %s: list vehicles: %w", a.name, err)
	}
	byVIN := make(map[string]*model.Vehicle, len(vs))
	for _, v := range vs {
		byVIN[v.VIN] = v
	}
	a.mu.Lock()
	a.vehicles = vs
	a.byVIN = byVIN
	a.mu.Unlock()
	a.log.Infof("account %s: %d vehicles", a.name, len(vs))
	return nil
}

// Vehicles returns the vehicles of the account.
func (a *Account) Vehicles() []*model.Vehicle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*model.Vehicle, len(a.vehicles))
	copy(out, a.vehicles)
	return out
}

// Vehicle looks up a vehicle by VIN.
func (a *Account) Vehicle(vin string) (*model.Vehicle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.byVIN[vin]
	return v, ok
}

// Subscribe registers fn to be called after every state update. The
// returned function removes the registration.
func (a *Account) Subscribe(fn func()) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners = append(a.listeners, listener{id: id, fn: fn})
	a.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { a.remove(id) })
	}
}

func (a *Account) remove(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, l := range a.listeners {
		if l.id == id {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of registered listeners.
func (a *Account) Listeners() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.listeners)
}

// Apply replaces the state of the targeted vehicle.
func (a *Account) Apply(u StateUpdate) error {
	v, ok := a.Vehicle(u.VIN)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, u.VIN)
	}
	if u.State == nil {
		return fmt.Errorf("vehicle %s: empty state", u.VIN)
	}
	v.SetState(u.State)
	return nil
}

// Notify calls every listener in subscription order.
func (a *Account) Notify() {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	a.mu.RLock()
	ls := make([]listener, len(a.listeners))
	copy(ls, a.listeners)
	a.mu.RUnlock()
	for _, l := range ls {
		l.fn()
	}
}

// Run applies state updates published on bus and notifies listeners until
// ctx is done or the bus is closed. Updates for vehicles of other accounts
// are ignored.
func (a *Account) Run(ctx context.Context, bus *eventbus.TypedBus[StateUpdate]) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)
	a.Listen(ctx, ch)
}

// Listen is Run on an existing subscription. It returns when ctx is done
// or updates is closed.
//
// Updates are applied as soon as they are received so the subscription
// never backs up behind slow listeners. Listeners run on a separate
// goroutine, one round at a time; updates arriving during a round are
// coalesced into a single following round, which sees the latest state of
// every vehicle.
func (a *Account) Listen(ctx context.Context, updates <-chan StateUpdate) {
	dirty := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range dirty {
			a.Notify()
		}
	}()
	defer func() {
		close(dirty)
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := a.Apply(u); err != nil {
				if !errors.Is(err, ErrUnknownVehicle) {
					a.log.Warnf("account %s: %v", a.name, err)
				}
				continue
			}
			a.log.Debugw("state update", map[string]any{"account": a.name, "vin": u.VIN})
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
	}
}
