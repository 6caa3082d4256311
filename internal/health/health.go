// Package health aggregates named subsystem probes for the health endpoint.
package health

import (
	"context"
	"sync"
)

// Status is the outcome of one subsystem probe.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// OK reports a passing probe.
func OK(name string) Status {
	return Status{Name: name, Healthy: true}
}

// Fail reports a failing probe with a human-readable reason.
func Fail(name, detail string) Status {
	return Status{Name: name, Healthy: false, Detail: detail}
}

// Checker probes one subsystem. It must respect ctx: probes run with the
// request's deadline and a hung dependency must not hang the endpoint.
type Checker func(ctx context.Context) Status

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Checker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Checker)}
}

// Register adds a probe under name. Registering the same name again
// replaces the probe but keeps its original position in results.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.checks[name]; !seen {
		r.names = append(r.names, name)
	}
	r.checks[name] = check
}

// CheckAll runs every probe concurrently and reports the aggregate plus
// the individual results in registration order. A slow database probe
// therefore cannot delay the realtime probe past its own cost.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	checks := make(map[string]Checker, len(r.checks))
	for n, c := range r.checks {
		checks[n] = c
	}
	r.mu.RUnlock()

	statuses = make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check Checker) {
			defer wg.Done()
			statuses[i] = check(ctx)
		}(i, checks[name])
	}
	wg.Wait()

	healthy = true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
