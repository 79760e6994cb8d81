package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ResponseStrategy decides how a vehicle answers a poll request.
type ResponseStrategy interface {
	// Respond calls send unless the answer is dropped.
	Respond(ctx context.Context, send func())
}

// Immediate answers every request right away.
type Immediate struct{}

// Respond implements ResponseStrategy.
func (Immediate) Respond(_ context.Context, send func()) { send() }

// RandomResponse drops answers with the configured probability and waits
// for Delay before sending the others.
type RandomResponse struct {
	Delay    time.Duration
	DropRate float64
	Clock    clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomResponse returns a strategy seeded with seed.
func NewRandomResponse(delay time.Duration, dropRate float64, seed int64, clk clock.Clock) *RandomResponse {
	if clk == nil {
		clk = clock.New()
	}
	return &RandomResponse{Delay: delay, DropRate: dropRate, Clock: clk, rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomResponse) dropped() bool {
	if r.DropRate <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.DropRate
}

// Respond implements ResponseStrategy.
func (r *RandomResponse) Respond(ctx context.Context, send func()) {
	if r.dropped() {
		return
	}
	if r.Delay > 0 {
		t := r.Clock.Timer(r.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
	send()
}
