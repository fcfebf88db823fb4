package geometry

import (
	"math"
	"testing"
)

func straightTrajectory(t *testing.T) *Trajectory {
	t.Helper()
	tr, err := NewTrajectory(10, []Vec2{{X: -5, Y: 0}, {X: 5, Y: 0}})
	if err != nil {
		t.Fatalf("NewTrajectory: %v", err)
	}
	return tr
}

func TestTrajectoryPointAt(t *testing.T) {
	tr := straightTrajectory(t)

	if got := tr.Length(); got != 10 {
		t.Fatalf("Length() = %f, want 10", got)
	}

	cases := []struct {
		name    string
		d       float64
		wantPos Vec2
	}{
		{"start", 0, Vec2{X: -5, Y: 0}},
		{"midpoint", 5, Vec2{X: 0, Y: 0}},
		{"end", 10, Vec2{X: 5, Y: 0}},
		{"past end clamps to endpoint", 50, Vec2{X: 5, Y: 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pose, err := tr.PointAt(c.d)
			if err != nil {
				t.Fatalf("PointAt(%f): %v", c.d, err)
			}
			if pose.Position != c.wantPos {
				t.Fatalf("PointAt(%f).Position = %v, want %v", c.d, pose.Position, c.wantPos)
			}
			if math.Abs(pose.Heading) > 1e-9 {
				t.Fatalf("PointAt(%f).Heading = %f, want 0", c.d, pose.Heading)
			}
		})
	}
}

func TestTrajectoryPointAtNegativeFails(t *testing.T) {
	tr := straightTrajectory(t)
	if _, err := tr.PointAt(-1); err == nil {
		t.Fatal("PointAt(-1) should fail with InvalidArgumentError")
	} else if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("PointAt(-1) error type = %T, want *InvalidArgumentError", err)
	}
}

func TestNewTrajectoryRejectsShortOrDegeneratePolylines(t *testing.T) {
	if _, err := NewTrajectory(10, []Vec2{{X: 0, Y: 0}}); err == nil {
		t.Fatal("expected error for single-point polyline")
	}
	if _, err := NewTrajectory(10, []Vec2{{X: 0, Y: 0}, {X: 0, Y: 0}}); err == nil {
		t.Fatal("expected error for coincident consecutive points")
	}
}

func TestTrajectoryMultiSegmentHeading(t *testing.T) {
	// An L-shaped turn: east then north.
	tr, err := NewTrajectory(10, []Vec2{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}})
	if err != nil {
		t.Fatalf("NewTrajectory: %v", err)
	}

	pose, err := tr.PointAt(2)
	if err != nil {
		t.Fatalf("PointAt(2): %v", err)
	}
	if math.Abs(pose.Heading) > 1e-9 {
		t.Fatalf("heading on first segment = %f, want 0 (east)", pose.Heading)
	}

	pose, err = tr.PointAt(7)
	if err != nil {
		t.Fatalf("PointAt(7): %v", err)
	}
	wantHeading := math.Pi / 2
	if math.Abs(pose.Heading-wantHeading) > 1e-9 {
		t.Fatalf("heading on second segment = %f, want %f (north)", pose.Heading, wantHeading)
	}
	if pose.Position != (Vec2{X: 5, Y: 2}) {
		t.Fatalf("position on second segment = %v, want (5,2)", pose.Position)
	}
}
