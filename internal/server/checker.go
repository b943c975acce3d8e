package server

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// Checker is a HealthChecker built from named component checks. It is ready
// when every check passes and alive until SetLive(false).
type Checker struct {
	checks  []namedCheck
	timeout time.Duration
	live    atomic.Bool

	mu     sync.RWMutex
	status map[string]string
}

// NewChecker creates a checker whose checks run with the given timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	c := &Checker{
		timeout: timeout,
		status:  make(map[string]string),
	}
	c.live.Store(true)
	return c
}

// AddCheck registers a readiness check. It is not safe to call once the
// checker is serving.
func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// SetLive sets the liveness state.
func (c *Checker) SetLive(live bool) {
	c.live.Store(live)
}

// Liveness reports whether the process should keep running.
func (c *Checker) Liveness() bool {
	return c.live.Load()
}

// Readiness runs every check and records its status.
func (c *Checker) Readiness(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status := make(map[string]string, len(c.checks))
	ready := true
	for _, nc := range c.checks {
		if err := nc.check(ctx); err != nil {
			status[nc.name] = err.Error()
			ready = false
			continue
		}
		status[nc.name] = "ok"
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	return ready
}

// IsHealthy reports whether the last readiness run passed and the process is live.
func (c *Checker) IsHealthy() bool {
	if !c.Liveness() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.status {
		if s != "ok" {
			return false
		}
	}
	return true
}

// GetStatus returns a copy of the status recorded by the last readiness run.
func (c *Checker) GetStatus() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	names := make([]string, len(c.checks))
	for i, nc := range c.checks {
		names[i] = nc.name
	}
	sort.Strings(names)
	return names
}
