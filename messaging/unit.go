package messaging

import "fmt"

// MessagingUnit is a range-limited named endpoint. All interactions between
// an intersection manager and vehicles flow through one, per spec.md §4.4.
// Implementations don't promise reliable delivery beyond the guarantee that
// Send either delivers or fails loudly: it never silently drops.
type MessagingUnit interface {
	// Address is this unit's stable identifier in the registry.
	Address() string
	// Discover returns the addresses currently reachable from this unit.
	Discover() []string
	// Send delivers msg to address, synchronously enqueuing it into the
	// recipient's mailbox. Returns UnreachableError if address is not
	// currently reachable or has been destroyed.
	Send(address string, payload Payload) error
	// Broadcast is a best-effort Send to every reachable unit except self.
	Broadcast(payload Payload)
	// Receive returns, and clears, the messages delivered since the last
	// call to Receive.
	Receive() []Envelope
	// Destroy removes this unit from the registry. Idempotent.
	Destroy()
}

// UnreachableError is returned when Send targets an address that is not
// currently reachable (unregistered, destroyed, or out of range). Per
// spec.md §7 this is a caller bug: callers must Discover() first.
type UnreachableError struct {
	Address string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("messaging: address %q is not reachable", e.Address)
}
