// Package dashboard exposes the live state of a simulation run (intersection
// occupancy, vehicle positions) to a browser over a websocket, the same
// architecture the teacher uses to push RL grid-cell updates to a page:
// a value/model channel, throttled/batched, fanned out over one websocket
// client per page.
package dashboard

import "intersectioncontrol/geometry"

// VehicleView is the subset of a vehicle's state worth drawing on the map.
type VehicleView struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Heading  float64 `json:"heading"`
	State    string  `json:"state"`
	Protocol string  `json:"protocol"` // "im" or "stip"
}

// TileView is one occupied space-time reservation cell, reported at the
// tick nearest the snapshot's time so the page can render it as "currently
// held".
type TileView struct {
	I     int    `json:"i"`
	J     int    `json:"j"`
	Owner string `json:"owner"`
}

// IntersectionView is the static geometry of one intersection plus its
// currently-held tiles.
type IntersectionView struct {
	ID          string        `json:"id"`
	Centre      geometry.Vec2 `json:"centre"`
	Size        geometry.Vec2 `json:"size"`
	Granularity int           `json:"granularity"`
	Tiles       []TileView    `json:"tiles"`
}

// Snapshot is the idempotent view-model pushed to dashboard clients: the
// complete state needed to redraw the page from scratch. Because the
// websocket publisher (client.go) drops any snapshot arriving faster than
// its publish rate, every Snapshot must stand alone rather than describe a
// delta from the last one.
type Snapshot struct {
	Time          float64            `json:"time"`
	Intersections []IntersectionView `json:"intersections"`
	Vehicles      []VehicleView      `json:"vehicles"`
}
