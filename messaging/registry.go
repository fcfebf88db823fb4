package messaging

import "sync"

// Registry is the process-wide, single-owner directory of live
// MessagingUnits, per spec.md §5/§9: "Global process-wide MessagingUnit
// registry... a single lock suffices since the step loop is
// single-threaded." A unit must call Destroy before its address can be
// reused. If concurrent step loops are ever introduced, spec.md §9 names
// the replacement: batch sends and apply them between steps instead of
// locking the registry.
type Registry struct {
	mu    sync.Mutex
	units map[string]*DistanceUnit
}

// NewRegistry returns an empty registry. Most callers share one registry
// per simulation run.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*DistanceUnit)}
}

func (r *Registry) register(u *DistanceUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.address] = u
}

func (r *Registry) unregister(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, address)
}

func (r *Registry) lookup(address string) (*DistanceUnit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[address]
	return u, ok
}

// addresses returns every currently-registered address. Used by Discover.
func (r *Registry) addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	addrs := make([]string, 0, len(r.units))
	for addr := range r.units {
		addrs = append(addrs, addr)
	}
	return addrs
}
