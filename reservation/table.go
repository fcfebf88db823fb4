package reservation

import (
	"fmt"
	"math"

	"intersectioncontrol/geometry"
)

// Slot identifies one occupancy cell: a tile at a discretised instant.
type Slot struct {
	Tile geometry.Tile
	T    Tick
}

// ProtocolError marks a message whose contents violate the reservation
// protocol — e.g. Done from a vehicle that holds no reservation. Per
// spec.md §7 these are logged and ignored, never propagated as a fatal
// error.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string { return e.msg }

func protocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// Table is the IM-side mutable reservation state of spec.md §3: the tile/
// time occupancy map, each vehicle's held slots, per-vehicle request
// timeouts, and the per-entry-direction stall-priority marker. A Table is
// owned exclusively by one IntersectionManager and is never accessed
// concurrently, per spec.md §5 — no internal locking.
type Table struct {
	Params Params

	occupancy      map[Slot]string
	byVehicle      map[string]map[Slot]struct{}
	timeouts       map[string]Tick
	nearestStalled map[string]float64
}

// New returns an empty reservation table using params.
func New(params Params) *Table {
	return &Table{
		Params:         params,
		occupancy:      make(map[Slot]string),
		byVehicle:      make(map[string]map[Slot]struct{}),
		timeouts:       make(map[string]Tick),
		nearestStalled: make(map[string]float64),
	}
}

// Occupant returns the vehicle holding slot, if any.
func (tbl *Table) Occupant(slot Slot) (string, bool) {
	v, ok := tbl.occupancy[slot]
	return v, ok
}

// Reservations returns the slot set held by vehicleID, or nil if it holds
// none.
func (tbl *Table) Reservations(vehicleID string) map[Slot]struct{} {
	return tbl.byVehicle[vehicleID]
}

// Occupied returns a snapshot of every currently-held slot and its owner,
// for telemetry consumers (e.g. the dashboard) that need to draw the whole
// table rather than query one vehicle or slot at a time.
func (tbl *Table) Occupied() map[Slot]string {
	out := make(map[Slot]string, len(tbl.occupancy))
	for slot, owner := range tbl.occupancy {
		out[slot] = owner
	}
	return out
}

// Timeout returns the soonest tick at which vehicleID may send another
// Request/ChangeRequest, or (0, false) if none is on record.
func (tbl *Table) Timeout(vehicleID string) (Tick, bool) {
	t, ok := tbl.timeouts[vehicleID]
	return t, ok
}

// SetTimeout installs a new timeout for vehicleID. Per invariant I4,
// callers must not lower a still-pending timeout without an intervening
// Confirm or Release; Table trusts the caller (the IM) to enforce that,
// since the comparison requires context (the current simulation time)
// the table does not track.
func (tbl *Table) SetTimeout(vehicleID string, t Tick) {
	tbl.timeouts[vehicleID] = t
}

// NearestStalled returns the distance of the nearest rejected, still-
// stalled vehicle on entryDirection, or +Inf if none.
func (tbl *Table) NearestStalled(entryDirection string) float64 {
	if d, ok := tbl.nearestStalled[entryDirection]; ok {
		return d
	}
	return math.Inf(1)
}

// SetNearestStalled records distance as the new stall marker for
// entryDirection.
func (tbl *Table) SetNearestStalled(entryDirection string, distance float64) {
	tbl.nearestStalled[entryDirection] = distance
}

// ResetNearestStalled clears the stall marker for entryDirection (sets it
// back to +Inf), done whenever a request on that direction is confirmed.
func (tbl *Table) ResetNearestStalled(entryDirection string) {
	delete(tbl.nearestStalled, entryDirection)
}

// Conflicts reports whether any slot in slots is already held by a
// vehicle other than vehicleID.
func (tbl *Table) Conflicts(vehicleID string, slots map[Slot]struct{}) bool {
	for slot := range slots {
		if owner, ok := tbl.occupancy[slot]; ok && owner != vehicleID {
			return true
		}
	}
	return false
}

// ConflictsInWindow reports whether tile is held by a vehicle other than
// vehicleID at any tick in the half-open range [t-window, t+window), the
// same per-tile buffer window the two-pass feasibility search sweeps
// around each candidate tick.
func (tbl *Table) ConflictsInWindow(vehicleID string, tile geometry.Tile, t Tick, window int) bool {
	for i := -window; i < window; i++ {
		slot := Slot{Tile: tile, T: t + Tick(i)}
		if owner, ok := tbl.occupancy[slot]; ok && owner != vehicleID {
			return true
		}
	}
	return false
}

// Commit installs slots as held by vehicleID, maintaining I1/I3. Callers
// must have already verified !Conflicts(vehicleID, slots); Commit panics
// on a conflict since that would indicate the feasibility search itself
// is wrong, not a bad message.
func (tbl *Table) Commit(vehicleID string, slots map[Slot]struct{}) {
	held, ok := tbl.byVehicle[vehicleID]
	if !ok {
		held = make(map[Slot]struct{}, len(slots))
		tbl.byVehicle[vehicleID] = held
	}
	for slot := range slots {
		if owner, exists := tbl.occupancy[slot]; exists && owner != vehicleID {
			panic(fmt.Sprintf("reservation: commit would overwrite slot %v held by %q", slot, owner))
		}
		tbl.occupancy[slot] = vehicleID
		held[slot] = struct{}{}
	}
}

// Release removes every slot held by vehicleID (the Done algorithm of
// spec.md §4.7). It returns a ProtocolError if vehicleID holds no
// reservation, per spec.md §7 ("Done from a non-owner"); the IM must log
// and ignore that error rather than propagate it.
func (tbl *Table) Release(vehicleID string) error {
	held, ok := tbl.byVehicle[vehicleID]
	if !ok {
		return protocolError("reservation: Done from %q, which holds no reservation", vehicleID)
	}
	for slot := range held {
		if owner, exists := tbl.occupancy[slot]; exists && owner == vehicleID {
			delete(tbl.occupancy, slot)
		}
	}
	delete(tbl.byVehicle, vehicleID)
	return nil
}
