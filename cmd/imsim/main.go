// Command imsim runs a headless or dashboard-visible simulation of one or
// more intersections driven from a YAML scenario, the same
// flag-parsed-in-init/runApp-returns-error shape the teacher's own main.go
// uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"intersectioncontrol/config"
	"intersectioncontrol/dashboard"
	"intersectioncontrol/geometry"
	"intersectioncontrol/im"
	"intersectioncontrol/messaging"
	"intersectioncontrol/reservation"
	"intersectioncontrol/simenv"
	"intersectioncontrol/stip"
	"intersectioncontrol/vehicle"
)

var (
	scenarioPath *string
	paramsPath   *string
	addr         *string
	headless     *bool
	ticks        *int
	dt           *float64
)

func init() {
	scenarioPath = flag.String("scenario", "./scenario.yaml", "path to the scenario YAML file")
	paramsPath = flag.String("params", "", "path to a reservation params YAML file (optional, defaults used otherwise)")
	addr = flag.String("addr", ":8080", "dashboard listen address")
	headless = flag.Bool("headless", false, "run without serving the dashboard")
	ticks = flag.Int("ticks", 1200, "number of simulation ticks to run")
	dt = flag.Float64("dt", 0.1, "seconds per simulation tick")
	flag.Parse()
}

// commRange is the messaging radius used for every unit in the demo: large
// enough that every IM and vehicle in one scenario can always reach each
// other, since scenario files describe small single- or few-intersection
// scenes rather than a city grid with real radio range limits.
const commRange = 1e6

// agent is the common surface the driver needs from either a
// vehicle.Vehicle (qb-im protocol) or a stip.Vehicle (decentralised
// protocol): something it can Step and describe for the dashboard.
type agent struct {
	id       string
	protocol string
	step     func(now float64)
	state    func() string
}

func buildAgents(world *simenv.World, registry *messaging.Registry, scenario *config.ScenarioConfig) []*agent {
	agents := make([]*agent, 0, len(scenario.Vehicles))
	for _, v := range scenario.Vehicles {
		id := v.ID
		unit := messaging.NewDistanceUnit(registry, id, commRange, func() geometry.Vec2 { return world.Position(id) })

		switch v.Protocol {
		case "stip":
			veh := stip.New(id, world, unit)
			agents = append(agents, &agent{
				id: id, protocol: "stip",
				step:  func(now float64) { veh.Step(now) },
				state: func() string { return veh.State.String() },
			})
		default:
			veh := vehicle.New(id, world, unit)
			agents = append(agents, &agent{
				id: id, protocol: "im",
				step:  func(now float64) { veh.Step(now) },
				state: func() string { return veh.State.String() },
			})
		}
	}
	return agents
}

func buildManagers(world *simenv.World, registry *messaging.Registry, isecs []simenv.IntersectionConfig, params reservation.Params) (map[string]*im.Manager, error) {
	managers := make(map[string]*im.Manager, len(isecs))
	for _, isec := range isecs {
		isec := isec
		grid, err := geometry.NewDiscretisedIntersection(isec.Centre, isec.Size, isec.Granularity, isec.Lanes)
		if err != nil {
			return nil, fmt.Errorf("imsim: intersection %q: %w", isec.ID, err)
		}
		unit := messaging.NewDistanceUnit(registry, isec.ID, commRange, func() geometry.Vec2 { return isec.Centre })
		managers[isec.ID] = im.New(isec.ID, grid, unit, params)
	}
	return managers, nil
}

func snapshot(now float64, world *simenv.World, managers map[string]*im.Manager, agents []*agent) dashboard.Snapshot {
	snap := dashboard.Snapshot{Time: now}

	for id, mgr := range managers {
		view := dashboard.IntersectionView{
			ID:          id,
			Centre:      world.IntersectionPosition(id),
			Size:        geometry.Vec2{X: world.IntersectionWidth(id), Y: world.IntersectionHeight(id)},
			Granularity: mgr.Intersection.Granularity,
		}
		nowTick := reservation.DiscretiseTime(now, mgr.Table.Params.Delta, reservation.Nearest)
		for slot, owner := range mgr.Table.Occupied() {
			if slot.T != nowTick {
				continue
			}
			view.Tiles = append(view.Tiles, dashboard.TileView{I: slot.Tile.I, J: slot.Tile.J, Owner: owner})
		}
		snap.Intersections = append(snap.Intersections, view)
	}

	for _, a := range agents {
		pos := world.Position(a.id)
		snap.Vehicles = append(snap.Vehicles, dashboard.VehicleView{
			ID:       a.id,
			X:        pos.X,
			Y:        pos.Y,
			State:    a.state(),
			Protocol: a.protocol,
		})
	}

	return snap
}

// trackMetrics makes a best-effort attempt to feed simenv.Metrics from a
// vehicle's state string, since im.Manager and vehicle.Vehicle expose no
// explicit Request/Confirm/Reject hooks of their own: a transition out of
// DEFAULT counts as a request, a transition into APPROACHING_WITH_RES
// counts as a confirm, and any tick spent WAITING counts toward wait time.
func trackMetrics(metrics *simenv.Metrics, now float64, agents []*agent, lastState map[string]string) {
	for _, a := range agents {
		if a.protocol != "im" {
			continue
		}
		cur := a.state()
		prev := lastState[a.id]
		if prev == "DEFAULT" && cur != "DEFAULT" {
			metrics.RecordRequest(a.id, now)
		}
		if cur == "WAITING" {
			metrics.RecordWaitTick(a.id)
		}
		if prev != "APPROACHING_WITH_RES" && cur == "APPROACHING_WITH_RES" {
			metrics.RecordConfirm(a.id, now)
		}
		lastState[a.id] = cur
	}
}

// nonBlockingSend drops a telemetry value rather than stall the step loop
// if a channel's single buffer slot is already full — the same drop-on-
// congestion stance the dashboard publisher takes.
func nonBlockingSend[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// logTelemetry drains the merged manager/vehicle telemetry streams and
// logs notable events, demonstrating the channerics.Merge fan-in end to
// end. It never touches World or any agent directly — only the Telemetry
// values already copied out by the step loop.
func logTelemetry(done <-chan struct{}, managers <-chan im.Telemetry, vehicles <-chan vehicle.Telemetry) {
	lastLogged := make(map[string]string)
	for {
		select {
		case <-done:
			return
		case t, ok := <-managers:
			if !ok {
				managers = nil
				continue
			}
			if len(t.Occupied) > 0 {
				log.Printf("imsim: %s holds %d tile-ticks at t=%.2f", t.ManagerID, len(t.Occupied), t.Now)
			}
		case t, ok := <-vehicles:
			if !ok {
				vehicles = nil
				continue
			}
			if lastLogged[t.VehicleID] != t.State {
				log.Printf("imsim: %s -> %s at t=%.2f", t.VehicleID, t.State, t.Now)
				lastLogged[t.VehicleID] = t.State
			}
		}
	}
}

func runApp() error {
	params := reservation.DefaultParams()
	if *paramsPath != "" {
		loaded, err := config.LoadIMConfig(*paramsPath)
		if err != nil {
			return fmt.Errorf("imsim: %w", err)
		}
		params = loaded
	}

	scenario, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		return fmt.Errorf("imsim: %w", err)
	}

	isecs, err := scenario.BuildIntersections()
	if err != nil {
		return fmt.Errorf("imsim: %w", err)
	}

	world := simenv.NewWorld()
	for _, isec := range isecs {
		world.AddIntersection(isec)
	}
	for _, vc := range scenario.VehicleConfigs() {
		if err := world.AddVehicle(vc); err != nil {
			return fmt.Errorf("imsim: %w", err)
		}
	}

	registry := messaging.NewRegistry()
	managers, err := buildManagers(world, registry, isecs, params)
	if err != nil {
		return err
	}
	agents := buildAgents(world, registry, scenario)
	metrics := simenv.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := make(chan dashboard.Snapshot)
	defer close(snapshots)

	if !*headless {
		hub := dashboard.NewHub(ctx, snapshots)
		srv := dashboard.NewServer(*addr, hub)
		go func() {
			if err := srv.Serve(); err != nil {
				log.Printf("imsim: dashboard stopped: %v", err)
			}
		}()
		log.Printf("imsim: dashboard listening on %s", *addr)
	}

	// Each manager and reservation-protocol vehicle gets its own telemetry
	// channel; RunAll fans every one of them into a single merged stream
	// via channerics.Merge, mirroring reinforcement.Train's per-worker
	// fan-in. The merge runs concurrently with the step loop below, but
	// only ever carries copied Telemetry values — never the world itself —
	// so there's nothing for the step loop's mutation of World to race
	// with.
	managerTelemetry := make(map[string]chan im.Telemetry, len(managers))
	managerChans := make([]<-chan im.Telemetry, 0, len(managers))
	for id := range managers {
		ch := make(chan im.Telemetry, 1)
		managerTelemetry[id] = ch
		managerChans = append(managerChans, ch)
	}
	vehicleTelemetry := make(map[string]chan vehicle.Telemetry, len(agents))
	vehicleChans := make([]<-chan vehicle.Telemetry, 0, len(agents))
	for _, a := range agents {
		if a.protocol != "im" {
			continue
		}
		ch := make(chan vehicle.Telemetry, 1)
		vehicleTelemetry[a.id] = ch
		vehicleChans = append(vehicleChans, ch)
	}
	mergedManagers := im.RunAll(ctx.Done(), managerChans)
	mergedVehicles := vehicle.RunAll(ctx.Done(), vehicleChans)
	go logTelemetry(ctx.Done(), mergedManagers, mergedVehicles)

	lastState := make(map[string]string, len(agents))
	for _, a := range agents {
		lastState[a.id] = a.state()
	}
	for i := 0; i < *ticks; i++ {
		world.Step(*dt)
		now := world.CurrentTime()

		for _, a := range agents {
			a.step(now)
			if ch, ok := vehicleTelemetry[a.id]; ok {
				nonBlockingSend(ch, vehicle.Telemetry{VehicleID: a.id, Now: now, State: a.state()})
			}
		}
		for id, mgr := range managers {
			mgr.Step(now)
			nonBlockingSend(managerTelemetry[id], mgr.Snapshot(now))
		}
		trackMetrics(metrics, now, agents, lastState)

		if !*headless {
			select {
			case snapshots <- snapshot(now, world, managers, agents):
			default:
			}
		}
	}

	for _, sample := range metrics.Samples() {
		log.Printf("imsim: %s crossed: time-to-confirm=%.2fs rejections=%d wait-ticks=%d",
			sample.VehicleID, sample.TimeToConfirm, sample.RejectionsBeforeConfirm, sample.WaitTicks)
	}

	if !*headless {
		// Give any open dashboard connections a moment to drain before
		// the process exits.
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
