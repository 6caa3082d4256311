// Package circuitbreaker guards a remote dependency with
// closed → open → half-open state transitions.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the circuit position.
type State int

const (
	StateClosed   State = iota // calls flow through
	StateOpen                  // tripped, calls are rejected
	StateHalfOpen              // one probe call is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trackrate",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by from-state and to-state.",
}, []string{"from_state", "to_state"})

func init() {
	prometheus.MustRegister(transitionsTotal)
}

// Breaker protects one dependency. The payout sender wraps its RPC
// endpoint in a Breaker so a dead node fails withdrawals fast instead of
// stacking up timeouts. It trips open after threshold consecutive
// failures, rejects calls for openFor, then admits a single probe.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	trippedAt time.Time

	threshold int
	openFor   time.Duration
}

// New returns a closed breaker. Non-positive arguments fall back to
// 5 failures / 30 seconds.
func New(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{threshold: threshold, openFor: openFor}
}

// Allow reports whether a call may proceed. When the open window has
// elapsed it moves to half-open and admits exactly one probe; further
// calls are rejected until that probe reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.trippedAt) >= b.openFor {
			b.moveTo(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess clears the failure streak and closes a half-open circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.moveTo(StateClosed)
	}
}

// RecordFailure extends the failure streak. A failed probe reopens the
// circuit; hitting the threshold while closed trips it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.trippedAt = time.Now()

	switch {
	case b.state == StateHalfOpen:
		b.moveTo(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		b.moveTo(StateOpen)
	}
}

// State returns the current circuit position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// moveTo must be called with b.mu held.
func (b *Breaker) moveTo(to State) {
	if b.state == to {
		return
	}
	transitionsTotal.WithLabelValues(b.state.String(), to.String()).Inc()
	b.state = to
}
