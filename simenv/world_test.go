package simenv_test

import (
	"testing"

	"intersectioncontrol/geometry"
	"intersectioncontrol/im"
	"intersectioncontrol/messaging"
	"intersectioncontrol/reservation"
	"intersectioncontrol/simenv"
	"intersectioncontrol/vehicle"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWorldDrivesAVehicleThroughAnEmptyIntersection(t *testing.T) {
	Convey("Given a World with one intersection and one approaching vehicle", t, func() {
		traj, err := geometry.NewTrajectory(15, []geometry.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}})
		So(err, ShouldBeNil)

		lanes := map[string]*geometry.Trajectory{"WE": traj}
		centre, size, granularity := geometry.Vec2{X: 0, Y: 0}, geometry.Vec2{X: 20, Y: 20}, 10

		world := simenv.NewWorld()
		world.AddIntersection(simenv.IntersectionConfig{
			ID: "im-1", Centre: centre, Size: size, Granularity: granularity, Lanes: lanes,
		})

		err = world.AddVehicle(simenv.VehicleConfig{
			ID: "car-1", IntersectionID: "im-1", Lane: "WE",
			Length: 5, Width: 2, SpeedLimit: 15,
			MaxAcceleration: 5, MaxDeceleration: 5,
			ApproachDistance: 50, InitialSpeed: 10,
		})
		So(err, ShouldBeNil)
		So(world.AddedVehicles(), ShouldContain, "car-1")

		registry := messaging.NewRegistry()
		imUnit := messaging.NewDistanceUnit(registry, "im-1", 10000, func() geometry.Vec2 { return centre })
		carUnit := messaging.NewDistanceUnit(registry, "car-1", 10000, func() geometry.Vec2 { return world.Position("car-1") })

		grid, err := geometry.NewDiscretisedIntersection(centre, size, granularity, lanes)
		So(err, ShouldBeNil)
		mgr := im.New("im-1", grid, imUnit, reservation.DefaultParams())
		car := vehicle.New("car-1", world, carUnit)

		Convey("it is confirmed a reservation within a few ticks", func() {
			for i := 0; i < 3; i++ {
				world.Step(0.1)
				car.Step(world.CurrentTime())
				mgr.Step(world.CurrentTime())
			}

			So(car.State, ShouldEqual, vehicle.ApproachingWithRes)
			So(car.Reservation, ShouldNotBeNil)
		})

		Convey("InIntersection and Departing follow its physical position", func() {
			So(world.InIntersection("car-1"), ShouldBeFalse)
			So(world.DrivingDistance("car-1"), ShouldEqual, 50)

			for i := 0; i < 600; i++ {
				world.Step(0.1)
				car.Step(world.CurrentTime())
				mgr.Step(world.CurrentTime())
				if _, ok := world.Departing("car-1"); ok {
					break
				}
			}

			_, departing := world.Departing("car-1")
			So(departing, ShouldBeTrue)
		})
	})
}
