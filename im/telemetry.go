package im

import (
	channerics "github.com/niceyeti/channerics/channels"

	"intersectioncontrol/reservation"
)

// Telemetry is a lightweight per-step snapshot of one Manager's
// reservation table, for downstream observability (the dashboard, log
// output) — never consumed by any other Manager or by the protocol logic
// itself.
type Telemetry struct {
	ManagerID string
	Now       float64
	Occupied  map[reservation.Slot]string
}

// Snapshot captures m's current telemetry at now. Callers take this after
// calling Step, so nothing in this package ever steps a Manager on its
// own — the step loop stays exactly as synchronous as spec.md §5
// requires; only the downstream fan-in of the resulting snapshots (RunAll,
// below) runs concurrently with the rest of the system.
func (m *Manager) Snapshot(now float64) Telemetry {
	return Telemetry{ManagerID: m.ID, Now: now, Occupied: m.Table.Occupied()}
}

// RunAll merges one Telemetry channel per manager into a single stream,
// the same channerics.Merge fan-in reinforcement.Train uses to combine its
// per-worker episode channels — here combining one IM's telemetry per
// channel instead of one training worker's progress per channel. The
// caller owns sending each manager's Snapshot onto its channel after every
// Step call; RunAll only merges what's already been produced.
func RunAll(done <-chan struct{}, perManager []<-chan Telemetry) <-chan Telemetry {
	return channerics.Merge(done, perManager...)
}
