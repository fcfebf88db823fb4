package messaging

import (
	"testing"

	"intersectioncontrol/geometry"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDistanceUnit(t *testing.T) {
	Convey("Given two units within range of each other", t, func() {
		registry := NewRegistry()
		posA := geometry.Vec2{X: 0, Y: 0}
		posB := geometry.Vec2{X: 10, Y: 0}
		a := NewDistanceUnit(registry, "a", 50, func() geometry.Vec2 { return posA })
		b := NewDistanceUnit(registry, "b", 50, func() geometry.Vec2 { return posB })

		Convey("they discover each other", func() {
			So(a.Discover(), ShouldContain, "b")
			So(b.Discover(), ShouldContain, "a")
		})

		Convey("send delivers synchronously, visible on the next receive", func() {
			err := a.Send("b", Done{VehicleID: "a"})
			So(err, ShouldBeNil)

			msgs := b.Receive()
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Sender, ShouldEqual, "a")
			So(msgs[0].Payload, ShouldResemble, Done{VehicleID: "a"})

			Convey("receive clears the mailbox", func() {
				So(b.Receive(), ShouldBeEmpty)
			})
		})

		Convey("broadcast reaches everyone but self", func() {
			a.Broadcast(Cancel{VehicleID: "a"})
			So(len(b.Receive()), ShouldEqual, 1)
			So(a.Receive(), ShouldBeEmpty)
		})

		Convey("destroy removes the unit from discovery and makes send fail", func() {
			b.Destroy()
			So(a.Discover(), ShouldNotContain, "b")
			err := a.Send("b", Cancel{})
			So(err, ShouldNotBeNil)
			_, ok := err.(*UnreachableError)
			So(ok, ShouldBeTrue)
		})

		Convey("destroy is idempotent", func() {
			b.Destroy()
			So(func() { b.Destroy() }, ShouldNotPanic)
		})
	})

	Convey("Given two units out of range", t, func() {
		registry := NewRegistry()
		posA := geometry.Vec2{X: 0, Y: 0}
		posB := geometry.Vec2{X: 1000, Y: 0}
		a := NewDistanceUnit(registry, "a", 50, func() geometry.Vec2 { return posA })
		NewDistanceUnit(registry, "b", 50, func() geometry.Vec2 { return posB })

		Convey("they do not discover each other and send fails loudly", func() {
			So(a.Discover(), ShouldNotContain, "b")
			err := a.Send("b", Cancel{})
			So(err, ShouldNotBeNil)
		})
	})
}
