package kinematics

import (
	"testing"

	"intersectioncontrol/geometry"
)

func straight(t *testing.T) *geometry.Trajectory {
	t.Helper()
	tr, err := geometry.NewTrajectory(20, []geometry.Vec2{{X: 0, Y: 0}, {X: 100, Y: 0}})
	if err != nil {
		t.Fatalf("NewTrajectory: %v", err)
	}
	return tr
}

func TestInternalVehicleUpdate(t *testing.T) {
	tr := straight(t)
	v := New(10, 2, 5, 2, tr)

	if !v.IsInIntersection() {
		t.Fatal("vehicle should start in the intersection")
	}

	if err := v.Update(1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v.DistanceMoved() != 10 {
		t.Fatalf("DistanceMoved() = %f, want 10", v.DistanceMoved())
	}
	if v.Velocity != 12 {
		t.Fatalf("Velocity = %f, want 12 (v0 + a*dt)", v.Velocity)
	}
	if v.Pose().Position.X != 10 {
		t.Fatalf("Pose().Position.X = %f, want 10", v.Pose().Position.X)
	}
}

// P8: every accelerated crossing completes in finite steps.
func TestWalkCompletesInFiniteSteps(t *testing.T) {
	tr := straight(t)
	v := New(5, 1, 5, 2, tr)

	steps := 0
	err := v.Walk(0.05, 1, func(v *InternalVehicle) bool {
		steps++
		return false
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if steps == 0 {
		t.Fatal("expected at least one step")
	}
	if v.IsInIntersection() {
		t.Fatal("vehicle should have exited the intersection")
	}
}

func TestWalkStopsEarlyWhenRequested(t *testing.T) {
	tr := straight(t)
	v := New(10, 0, 5, 2, tr)

	calls := 0
	err := v.Walk(0.05, 1, func(v *InternalVehicle) bool {
		calls++
		return calls == 3
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if calls != 3 {
		t.Fatalf("onStep called %d times, want 3", calls)
	}
}

func TestCapSpeedZeroesAccelerationAtLimit(t *testing.T) {
	tr := straight(t)
	v := New(19.5, 5, 5, 2, tr)
	v.CapSpeed(25) // trajectory speed limit (20) is the binding constraint

	if v.Acceleration != 5 {
		t.Fatalf("Acceleration = %f, want unchanged (below cap)", v.Acceleration)
	}

	v.Velocity = 20
	v.CapSpeed(25)
	if v.Acceleration != 0 {
		t.Fatalf("Acceleration = %f, want 0 once at the speed limit", v.Acceleration)
	}
}
