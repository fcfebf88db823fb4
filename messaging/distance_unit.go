package messaging

import (
	"sync"

	"intersectioncontrol/geometry"
)

// DistanceUnit is the reference MessagingUnit: an address is reachable iff
// it is registered and its current position is within a fixed Euclidean
// radius of this unit's own position, per spec.md §4.4. Delivery is
// synchronous: Send enqueues directly into the recipient's mailbox.
type DistanceUnit struct {
	address             string
	communicationRange  float64
	getPosition         func() geometry.Vec2
	registry            *Registry

	mu      sync.Mutex
	mailbox []Envelope
}

// NewDistanceUnit registers a new unit at address within registry. A unit
// must not be constructed twice for the same address without an
// intervening Destroy.
func NewDistanceUnit(registry *Registry, address string, communicationRange float64, getPosition func() geometry.Vec2) *DistanceUnit {
	u := &DistanceUnit{
		address:            address,
		communicationRange: communicationRange,
		getPosition:        getPosition,
		registry:           registry,
	}
	registry.register(u)
	return u
}

func (u *DistanceUnit) Address() string { return u.address }

// Discover returns every registered address (including its own) currently
// within range.
func (u *DistanceUnit) Discover() []string {
	var reachable []string
	for _, addr := range u.registry.addresses() {
		other, ok := u.registry.lookup(addr)
		if !ok {
			continue
		}
		if u.withinRange(other) {
			reachable = append(reachable, addr)
		}
	}
	return reachable
}

// Send delivers payload to address. Fails loudly with UnreachableError if
// address is not currently reachable, per spec.md §4.4/§7.
func (u *DistanceUnit) Send(address string, payload Payload) error {
	other, ok := u.registry.lookup(address)
	if !ok || !u.withinRange(other) {
		return &UnreachableError{Address: address}
	}
	other.deliver(Envelope{Sender: u.address, Payload: payload})
	return nil
}

// Broadcast is a best-effort Send to every reachable unit other than self.
func (u *DistanceUnit) Broadcast(payload Payload) {
	for _, addr := range u.Discover() {
		if addr == u.address {
			continue
		}
		// Reachability was just confirmed by Discover; a concurrent
		// Destroy between the two calls is not possible under the
		// single-threaded step loop this unit assumes (spec.md §5).
		_ = u.Send(addr, payload)
	}
}

// Receive returns, and clears, the messages delivered since the last call.
func (u *DistanceUnit) Receive() []Envelope {
	u.mu.Lock()
	defer u.mu.Unlock()
	msgs := u.mailbox
	u.mailbox = nil
	return msgs
}

// Destroy removes this unit from the registry. Idempotent.
func (u *DistanceUnit) Destroy() {
	u.registry.unregister(u.address)
}

func (u *DistanceUnit) withinRange(other *DistanceUnit) bool {
	self := u.getPosition()
	theirs := other.getPosition()
	return self.Sub(theirs).Length() < u.communicationRange
}

func (u *DistanceUnit) deliver(e Envelope) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mailbox = append(u.mailbox, e)
}
