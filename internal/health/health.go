// Package health aggregates readiness probes for the service's dependencies.
package health

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"svckit/internal/storage"
)

// Status is the outcome of a probe or of the aggregate report.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// CheckFunc probes a single dependency. A nil return means the dependency
// is healthy. Implementations must honor ctx.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of one named probe.
type Result struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates all probe results. Status is StatusDown when any probe
// failed.
type Report struct {
	Status Status            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Registry holds named readiness probes. Safe for concurrent use.
type Registry struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewRegistry creates a registry whose probes each run under the given
// timeout. A non-positive timeout defaults to 2 seconds.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		timeout: timeout,
		checks:  make(map[string]CheckFunc),
	}
}

// Register adds a named probe, replacing any previous probe of that name.
func (r *Registry) Register(name string, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = fn
}

// Names returns the registered probe names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered probe concurrently, each under the registry
// timeout, and aggregates the results. A probe that overruns its timeout
// counts as down.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checks := make(map[string]CheckFunc, len(r.checks))
	for name, fn := range r.checks {
		checks[name] = fn
	}
	r.mu.RUnlock()

	var (
		resMu   sync.Mutex
		results = make(map[string]Result, len(checks))
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, fn := range checks {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()

			res := Result{Status: StatusUp}
			if err := fn(probeCtx); err != nil {
				res = Result{Status: StatusDown, Error: err.Error()}
			}

			resMu.Lock()
			results[name] = res
			resMu.Unlock()
			return nil // probe failures are reported, not propagated
		})
	}
	_ = g.Wait()

	overall := StatusUp
	for _, res := range results {
		if res.Status == StatusDown {
			overall = StatusDown
			break
		}
	}
	return Report{Status: overall, Checks: results}
}

// DatabasePing returns a probe that pings the SQL pool.
func DatabasePing(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// ObjectStorePing returns a probe that verifies the object store bucket is
// reachable.
func ObjectStorePing(store storage.Store) CheckFunc {
	return func(ctx context.Context) error {
		return store.Ping(ctx)
	}
}
