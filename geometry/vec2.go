// Package geometry implements the space discretisation shared by the
// intersection manager and every vehicle agent: trajectories, the tile grid
// they are swept across, and the tile-sweep predicate itself.
package geometry

import "math"

// Vec2 is a point or free vector in the plane.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }

// Perp returns the vector rotated +90 degrees.
func (v Vec2) Perp() Vec2 { return Vec2{-v.Y, v.X} }

func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Pose is a position and heading (radians) along a trajectory.
type Pose struct {
	Position Vec2
	Heading  float64
}

// unit returns a unit vector pointing at angle theta.
func unit(theta float64) Vec2 {
	return Vec2{math.Cos(theta), math.Sin(theta)}
}

// angle returns the direction of v in radians, per math.Atan2.
func angle(v Vec2) float64 {
	return math.Atan2(v.Y, v.X)
}
