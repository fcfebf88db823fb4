package geometry

// overlapEpsilon guards against floating point jitter counting a hairline
// touch between two shapes as a positive-area intersection.
const overlapEpsilon = 1e-9

// polygonsIntersect reports whether the two convex quads (in the same
// coordinate space, vertices in winding order) overlap with strictly
// positive area. It tests the four separating axes defined by the edge
// normals of both quads, per spec.md §4.2/§9 (inline SAT rather than a
// general polygon-intersection library).
func polygonsIntersect(a, b [4]Vec2) bool {
	for _, axis := range quadAxes(a) {
		if !overlapsOnAxis(axis, a, b) {
			return false
		}
	}
	for _, axis := range quadAxes(b) {
		if !overlapsOnAxis(axis, a, b) {
			return false
		}
	}
	return true
}

// quadAxes returns the two distinct edge-normal axes of a quad (opposite
// edges of a parallelogram share an axis, so only two of the four edges
// need to be tested).
func quadAxes(q [4]Vec2) [2]Vec2 {
	e0 := q[1].Sub(q[0])
	e1 := q[2].Sub(q[1])
	return [2]Vec2{e0.Perp(), e1.Perp()}
}

func overlapsOnAxis(axis Vec2, a, b [4]Vec2) bool {
	aMin, aMax := projectQuad(axis, a)
	bMin, bMax := projectQuad(axis, b)
	return aMax > bMin+overlapEpsilon && bMax > aMin+overlapEpsilon
}

func projectQuad(axis Vec2, q [4]Vec2) (min, max float64) {
	min, max = axis.Dot(q[0]), axis.Dot(q[0])
	for _, v := range q[1:] {
		p := axis.Dot(v)
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return
}
