package vehicle

import (
	channerics "github.com/niceyeti/channerics/channels"
)

// Telemetry is a lightweight per-step snapshot of one Vehicle's state, for
// downstream observability only.
type Telemetry struct {
	VehicleID string
	Now       float64
	State     string
}

// Snapshot captures v's current telemetry at now. As with
// im.Manager.Snapshot, this never steps v itself — the caller does that.
func (v *Vehicle) Snapshot(now float64) Telemetry {
	return Telemetry{VehicleID: v.ID, Now: now, State: v.State.String()}
}

// RunAll merges one Telemetry channel per vehicle into a single stream,
// the same channerics.Merge fan-in im.RunAll uses for manager telemetry.
func RunAll(done <-chan struct{}, perVehicle []<-chan Telemetry) <-chan Telemetry {
	return channerics.Merge(done, perVehicle...)
}
