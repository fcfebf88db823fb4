package geometry

import "math"

// Tile addresses one cell of the N×N grid an intersection is partitioned
// into.
type Tile struct {
	I, J int
}

// Buffer is the (x, y) safety padding added around a swept footprint: x pads
// the vehicle's width, y pads its length. See spec.md §4.2/§9.
type Buffer struct {
	X, Y float64
}

// DiscretisedIntersection is an axis-aligned square region, centred at a
// point in world coordinates, partitioned into an N×N grid of square tiles.
// It is immutable once constructed.
type DiscretisedIntersection struct {
	Centre       Vec2
	Size         Vec2 // W, H; equal in practice
	Granularity  int
	Trajectories map[string]*Trajectory
}

// NewDiscretisedIntersection builds the grid. Granularity must be positive.
func NewDiscretisedIntersection(centre Vec2, size Vec2, granularity int, trajectories map[string]*Trajectory) (*DiscretisedIntersection, error) {
	if granularity <= 0 {
		return nil, invalidArgument("granularity must be positive, got %d", granularity)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, invalidArgument("intersection size must be positive, got (%f, %f)", size.X, size.Y)
	}
	return &DiscretisedIntersection{
		Centre:       centre,
		Size:         size,
		Granularity:  granularity,
		Trajectories: trajectories,
	}, nil
}

// IsBoundaryTile reports whether a tile lies on the outer row or column of
// the grid, where occlusion uncertainty is assumed greater (spec.md §4.7
// uses this to widen the time buffer on boundary tiles).
func (di *DiscretisedIntersection) IsBoundaryTile(t Tile) bool {
	n := di.Granularity
	return t.I == 0 || t.I == n-1 || t.J == 0 || t.J == n-1
}

// TilesSwept returns the set of tiles whose polygon intersects the oriented
// rectangle of footprint (length+buffer.Y) x (width+buffer.X) centred at
// pose.Position and rotated by pose.Heading, per spec.md §4.2.
func (di *DiscretisedIntersection) TilesSwept(pose Pose, length, width float64, buffer Buffer) map[Tile]struct{} {
	forward := unit(pose.Heading).Scale((length + buffer.Y) / 2)
	lateral := unit(pose.Heading).Perp().Scale((width + buffer.X) / 2)

	corners := [4]Vec2{
		pose.Position.Add(forward).Add(lateral),
		pose.Position.Sub(forward).Add(lateral),
		pose.Position.Sub(forward).Sub(lateral),
		pose.Position.Add(forward).Sub(lateral),
	}

	var transformed [4]Vec2
	for i, c := range corners {
		transformed[i] = di.toTileSpace(c)
	}

	minX, maxX := transformed[0].X, transformed[0].X
	minY, maxY := transformed[0].Y, transformed[0].Y
	for _, c := range transformed[1:] {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}

	iLo := clamp(int(math.Floor(minX)), 0, di.Granularity-1)
	iHi := clamp(int(math.Floor(maxX)), 0, di.Granularity-1)
	jLo := clamp(int(math.Floor(minY)), 0, di.Granularity-1)
	jHi := clamp(int(math.Floor(maxY)), 0, di.Granularity-1)

	tiles := make(map[Tile]struct{})
	if iHi < iLo || jHi < jLo {
		return tiles
	}

	for i := iLo; i <= iHi; i++ {
		for j := jLo; j <= jHi; j++ {
			tileQuad := [4]Vec2{
				{float64(i), float64(j)},
				{float64(i + 1), float64(j)},
				{float64(i + 1), float64(j + 1)},
				{float64(i), float64(j + 1)},
			}
			if polygonsIntersect(tileQuad, transformed) {
				tiles[Tile{I: i, J: j}] = struct{}{}
			}
		}
	}
	return tiles
}

// toTileSpace maps a world point to tile-index space: p -> ((p - centre) +
// size/2) / size * N, per spec.md §4.2 step 2.
func (di *DiscretisedIntersection) toTileSpace(p Vec2) Vec2 {
	n := float64(di.Granularity)
	return Vec2{
		X: ((p.X-di.Centre.X)+di.Size.X/2) / di.Size.X * n,
		Y: ((p.Y-di.Centre.Y)+di.Size.Y/2) / di.Size.Y * n,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
