// Package im implements the per-intersection IntersectionManager actor:
// message dispatch, the two-pass acceleration-profile feasibility search,
// and the accept/reject/acknowledge replies it sends, per spec.md §4.7.
package im

import (
	"fmt"
	"log"
	"math"

	"intersectioncontrol/geometry"
	"intersectioncontrol/kinematics"
	"intersectioncontrol/messaging"
	"intersectioncontrol/reservation"
)

// minVelocityFloor bounds the predictor loop's step budget (kinematics.Walk)
// against a vehicle requesting at zero or near-zero velocity.
const minVelocityFloor = 0.1

// Manager is one intersection's reservation authority: it owns a
// reservation.Table exclusively and communicates with vehicles only
// through its MessagingUnit, per spec.md §3/§5.
type Manager struct {
	ID           string
	Intersection *geometry.DiscretisedIntersection
	Unit         messaging.MessagingUnit
	Table        *reservation.Table

	nextReservationID int
}

// New constructs a Manager with a fresh, empty reservation table.
func New(id string, intersection *geometry.DiscretisedIntersection, unit messaging.MessagingUnit, params reservation.Params) *Manager {
	return &Manager{
		ID:           id,
		Intersection: intersection,
		Unit:         unit,
		Table:        reservation.New(params),
	}
}

// Step drains the manager's mailbox and processes every message, mutating
// the reservation table and replying as the protocol in spec.md §4.7
// requires. now is the current simulation clock in seconds.
func (m *Manager) Step(now float64) {
	for _, env := range m.Unit.Receive() {
		m.dispatch(now, env)
	}
}

func (m *Manager) dispatch(now float64, env messaging.Envelope) {
	switch msg := env.Payload.(type) {
	case messaging.Done:
		m.handleDone(env.Sender, msg)
	case messaging.Cancel:
		m.handleCancel(env.Sender, msg)
	case messaging.Request:
		m.handleRequest(now, env.Sender, msg, "")
	case messaging.ChangeRequest:
		m.handleChangeRequest(now, env.Sender, msg)
	default:
		log.Printf("im[%s]: ignoring unexpected message %T from %s", m.ID, msg, env.Sender)
	}
}

func (m *Manager) handleDone(sender string, msg messaging.Done) {
	if err := m.Table.Release(sender); err != nil {
		log.Printf("im[%s]: %v", m.ID, err)
		return
	}
	log.Printf("im[%s]: %s done, released reservation %s", m.ID, sender, msg.ReservationID)
	_ = m.Unit.Send(sender, messaging.Acknowledge{ReservationID: msg.ReservationID})
}

func (m *Manager) handleCancel(sender string, msg messaging.Cancel) {
	if err := m.Table.Release(sender); err != nil {
		log.Printf("im[%s]: %v", m.ID, err)
		return
	}
	log.Printf("im[%s]: %s cancelled reservation %s", m.ID, sender, msg.ReservationID)
	_ = m.Unit.Send(sender, messaging.Acknowledge{ReservationID: msg.ReservationID})
}

func (m *Manager) handleChangeRequest(now float64, sender string, msg messaging.ChangeRequest) {
	// A Change-Request implicitly cancels the vehicle's existing
	// reservation before the new one is evaluated (spec.md §4.7 step 1).
	// A vehicle with no standing reservation sending one anyway is a
	// protocol violation; log and continue evaluating the new request
	// regardless, since the source treats the release as best-effort.
	if err := m.Table.Release(sender); err != nil {
		log.Printf("im[%s]: change-request %v", m.ID, err)
	}
	m.handleRequest(now, sender, msg.Request, msg.ReservationID)
}

func (m *Manager) handleRequest(now float64, sender string, req messaging.Request, _ string) {
	trajectory, ok := m.Intersection.Trajectories[req.ArrivalLane]
	if !ok {
		log.Printf("im[%s]: request from %s names unknown lane %q, ignoring", m.ID, sender, req.ArrivalLane)
		return
	}
	delta := m.Table.Params.Delta
	dir := entryDirectionOf(trajectory)
	nowTick := reservation.DiscretiseTime(now, delta, reservation.Nearest)

	if timeout, ok := m.Table.Timeout(sender); ok && timeout > nowTick {
		m.reject(sender, timeout)
		return
	}

	cooldown := math.Min(0.5, (req.ArrivalTime-now)/2)
	timeoutTick := reservation.DiscretiseTime(now+cooldown, delta, reservation.Nearest)
	m.Table.SetTimeout(sender, timeoutTick)

	if req.Distance > m.Table.NearestStalled(dir) {
		m.reject(sender, timeoutTick)
		return
	}

	for _, accelerationMode := range []bool{true, false} {
		accel := 0.0
		if accelerationMode {
			accel = req.MaxAcceleration
		}
		candidate, abandon, collide := m.search(req, trajectory, accel, accelerationMode, delta)
		if abandon {
			continue
		}
		if collide {
			m.reject(sender, timeoutTick)
			m.Table.SetNearestStalled(dir, req.Distance)
			return
		}

		m.Table.Commit(sender, candidate)
		m.Table.ResetNearestStalled(dir)
		m.nextReservationID++
		reservationID := fmt.Sprintf("%s-%d", sender, m.nextReservationID)
		log.Printf("im[%s]: confirmed %s as %s (accelerate=%v)", m.ID, sender, reservationID, accelerationMode)
		_ = m.Unit.Send(sender, messaging.Confirm{
			ReservationID:   reservationID,
			ArrivalTime:     req.ArrivalTime,
			ArrivalVelocity: req.ArrivalVelocity,
			EarlyError:      req.ArrivalTime - m.Table.Params.TimeBuffer,
			LateError:       req.ArrivalTime + m.Table.Params.TimeBuffer,
			Accelerate:      accelerationMode,
		})
		return
	}
}

// search simulates one acceleration profile across the intersection,
// returning the candidate (tile, tick) set if it is collision-free. abandon
// is set when an accelerating profile collides but the vehicle is fast
// enough to be obliged to try constant speed instead (spec.md §4.7 step 5b
// first bullet); collide is set on an outright rejection.
func (m *Manager) search(req messaging.Request, trajectory *geometry.Trajectory, accel float64, accelerationMode bool, delta float64) (candidate map[reservation.Slot]struct{}, abandon, collide bool) {
	candidate = make(map[reservation.Slot]struct{})
	vehicle := kinematics.New(req.ArrivalVelocity, accel, req.Length, req.Width, trajectory)
	t := reservation.DiscretiseTime(req.ArrivalTime, delta, reservation.Nearest)
	buffer := geometry.Buffer{X: m.Table.Params.SafetyBufferX, Y: m.Table.Params.SafetyBufferY}
	maxVelocity := math.Min(req.MaxVelocity, trajectory.SpeedLimit())

	err := vehicle.Walk(delta, minVelocityFloor, func(v *kinematics.InternalVehicle) bool {
		tiles := m.Intersection.TilesSwept(v.Pose(), v.Length, v.Width, buffer)
		for tile := range tiles {
			localBuffer := m.Table.Params.TimeBuffer
			if m.Intersection.IsBoundaryTile(tile) {
				localBuffer = m.Table.Params.EdgeTileTimeBuffer
			}
			window := int(math.Round(localBuffer / delta))
			if m.Table.ConflictsInWindow(req.VehicleID, tile, t, window) {
				if accelerationMode && req.ArrivalVelocity > m.Table.Params.MustAccelerateThreshold {
					abandon = true
				} else {
					collide = true
				}
				return true
			}
			candidate[reservation.Slot{Tile: tile, T: t}] = struct{}{}
		}
		// Capping here, before Update runs this tick, means the limit takes
		// effect one tick earlier than capping the velocity Update just
		// produced would. Harmless at Δ=0.05s resolution, but intentional:
		// Walk always gives onStep the chance to adjust Acceleration before
		// the next integration step, so this is where a speed cap belongs.
		v.CapSpeed(maxVelocity)
		t++
		return false
	})
	if err != nil {
		log.Printf("im[%s]: feasibility search for %s exceeded its step budget: %v", m.ID, req.VehicleID, err)
		collide = true
	}
	return candidate, abandon, collide
}

func (m *Manager) reject(sender string, timeoutTick reservation.Tick) {
	_ = m.Unit.Send(sender, messaging.Reject{Timeout: timeoutTick.Seconds(m.Table.Params.Delta)})
}
