package entitystatus

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/connecteddrive/core/sensor"
)

// Status captures the last rendered state of a sensor entity.
type Status struct {
	sensor.Snapshot
	LastUpdated time.Time `json:"last_updated"`
	LastChanged time.Time `json:"last_changed"`
	LastError   string    `json:"last_error,omitempty"`
}

// Filter restricts List results. Empty fields match everything.
type Filter struct {
	Account   string
	VIN       string
	Attribute string
}

// Store keeps the latest status of every sensor entity.
type Store interface {
	Set(snap sensor.Snapshot, at time.Time)
	RecordError(uniqueID string, err error, at time.Time)
	Get(uniqueID string) (Status, bool)
	List(Filter) []Status
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

// Set stores snap. LastChanged only moves when the value differs from the
// previous one.
func (s *MemoryStore) Set(snap sensor.Snapshot, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data[snap.UniqueID]
	st := Status{Snapshot: snap, LastUpdated: at, LastChanged: at}
	if ok && reflect.DeepEqual(prev.Value, snap.Value) {
		st.LastChanged = prev.LastChanged
	}
	s.data[snap.UniqueID] = st
}

// RecordError attaches a refresh failure to an entity. The last known
// state is kept.
func (s *MemoryStore) RecordError(uniqueID string, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data[uniqueID]
	if st.UniqueID == "" {
		st.UniqueID = uniqueID
	}
	st.LastError = err.Error()
	st.LastUpdated = at
	s.data[uniqueID] = st
}

func (s *MemoryStore) Get(uniqueID string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[uniqueID]
	return st, ok
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.Account != "" && st.Account != f.Account {
			continue
		}
		if f.VIN != "" && st.VIN != f.VIN {
			continue
		}
		if f.Attribute != "" && st.Attribute != f.Attribute {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UniqueID < res[j].UniqueID })
	return res
}
