package sensor

import (
	"fmt"
	"strings"

	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/logger"
)

// Platform is a Host that accepts new adapters.
type Platform interface {
	Host
	Add(adapters []*Adapter) error
}

// Option customises Build and Setup.
type Option func(*options)

type options struct {
	allow map[string]map[Attribute]struct{}
}

// WithAttributes restricts the sensors created for the named account to
// attrs. An empty list leaves the account unrestricted.
func WithAttributes(accountName string, attrs ...Attribute) Option {
	return func(o *options) {
		if len(attrs) == 0 {
			delete(o.allow, accountName)
			return
		}
		set := make(map[Attribute]struct{}, len(attrs))
		for _, a := range attrs {
			set[a] = struct{}{}
		}
		o.allow[accountName] = set
	}
}

func (o *options) allowed(accountName string, a Attribute) bool {
	set, ok := o.allow[accountName]
	if !ok {
		return true
	}
	_, ok = set[a]
	return ok
}

// Build creates one adapter per drive train attribute of every vehicle of
// every account, plus one mileage adapter per vehicle.
func Build(accounts []*account.Account, opts ...Option) ([]*Adapter, error) {
	o := &options{allow: make(map[string]map[Attribute]struct{})}
	for _, opt := range opts {
		opt(o)
	}
	var out []*Adapter
	for _, acc := range accounts {
		for _, v := range acc.Vehicles() {
			for _, name := range v.DriveTrainAttributes() {
				attr, err := ParseAttribute(name)
				if err != nil {
					return nil, fmt.Errorf("vehicle %s: %w", v.VIN, err)
				}
				if o.allowed(acc.Name(), attr) {
					out = append(out, NewAdapter(acc, v, attr))
				}
			}
			if o.allowed(acc.Name(), Mileage) {
				out = append(out, NewAdapter(acc, v, Mileage))
			}
		}
	}
	return out, nil
}

// Setup builds the adapters, refreshes each once, hands them to p and
// subscribes them to push updates.
func Setup(accounts []*account.Account, p Platform, log logger.Logger, opts ...Option) ([]*Adapter, error) {
	names := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		names = append(names, acc.Name())
	}
	log.Debugf("found accounts: %s", strings.Join(names, ", "))

	adapters, err := Build(accounts, opts...)
	if err != nil {
		return nil, err
	}
	for _, a := range adapters {
		if err := a.Refresh(); err != nil {
			return nil, err
		}
	}
	if err := p.Add(adapters); err != nil {
		return nil, fmt.Errorf("add sensors: %w", err)
	}
	for _, a := range adapters {
		a.Added(p)
	}
	log.Infof("%d sensors set up", len(adapters))
	return adapters, nil
}
