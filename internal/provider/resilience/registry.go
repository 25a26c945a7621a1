package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level summarizes an upstream's breaker for health reports.
type Level string

// Health levels, from best to worst.
const (
	LevelUp       Level = "up"
	LevelDegraded Level = "degraded"
	LevelDown     Level = "down"
)

// ProviderHealth is a point-in-time view of one upstream.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// Trips counts transitions into the open state since registration.
	Trips int

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Level maps the breaker state: closed is up, half-open is degraded and
// open is down.
func (h *ProviderHealth) Level() Level {
	switch h.CircuitState {
	case gobreaker.StateClosed:
		return LevelUp
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelDown
	}
}

// Registry tracks the upstream clients of one process. Clients register
// themselves when built with ClientConfig.Registry set.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
}

type registeredProvider struct {
	client        *Client
	trips         int
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*registeredProvider)}
}

// Register adds client under name. A second client with the same name
// replaces the first.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{client: client}
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(p *registeredProvider, now time.Time) {
		p.lastSuccessAt = &now
	})
}

// RecordFailure notes a failed call and keeps its message.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(p *registeredProvider, now time.Time) {
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	})
}

// RecordTransition notes a breaker state change.
func (r *Registry) RecordTransition(name string, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	r.update(name, func(p *registeredProvider, _ time.Time) {
		p.trips++
	})
}

func (r *Registry) update(name string, fn func(p *registeredProvider, now time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		fn(p, time.Now())
	}
}

// Health returns the health of one upstream, or nil when it is unknown.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	p, ok := r.providers[name]
	var copied registeredProvider
	if ok {
		copied = *p
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return copied.health(name)
}

// Snapshot returns the health of every upstream, sorted by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	// Breakers call RecordTransition under their own lock, so they are
	// queried only after the registry lock is released.
	r.mu.RLock()
	copied := make(map[string]registeredProvider, len(r.providers))
	for name, p := range r.providers {
		copied[name] = *p
	}
	r.mu.RUnlock()

	all := make([]*ProviderHealth, 0, len(copied))
	for name, p := range copied {
		all = append(all, p.health(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Worst returns the lowest level across all upstreams. An empty registry
// is up.
func (r *Registry) Worst() Level {
	worst := LevelUp
	for _, h := range r.Snapshot() {
		switch h.Level() {
		case LevelDown:
			return LevelDown
		case LevelDegraded:
			worst = LevelDegraded
		}
	}
	return worst
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p registeredProvider) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.client.State(),
		Counts:        p.client.Counts(),
		Trips:         p.trips,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
