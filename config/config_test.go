package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"intersectioncontrol/config"

	. "github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	return path
}

func TestLoadIMConfig(t *testing.T) {
	Convey("Given a YAML file overriding only some reservation params", t, func() {
		dir := t.TempDir()
		path := writeFile(t, dir, "params.yaml", `
kind: reservation
def:
  delta: 0.02
  safetyBufferX: 1.5
`)

		Convey("loading it fills the rest from DefaultParams", func() {
			params, err := config.LoadIMConfig(path)
			So(err, ShouldBeNil)

			def := reservationDefaults()
			So(params.Delta, ShouldEqual, 0.02)
			So(params.SafetyBufferX, ShouldEqual, 1.5)
			So(params.TimeBuffer, ShouldEqual, def.TimeBuffer)
			So(params.EdgeTileTimeBuffer, ShouldEqual, def.EdgeTileTimeBuffer)
			So(params.SafetyBufferY, ShouldEqual, def.SafetyBufferY)
			So(params.MustAccelerateThreshold, ShouldEqual, def.MustAccelerateThreshold)
		})
	})

	Convey("Given a missing file", t, func() {
		Convey("loading it returns an error", func() {
			_, err := config.LoadIMConfig(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoadScenario(t *testing.T) {
	Convey("Given a YAML scenario with one intersection and one vehicle", t, func() {
		dir := t.TempDir()
		path := writeFile(t, dir, "scenario.yaml", `
kind: scenario
def:
  intersections:
    - id: im-1
      centre: [0, 0]
      size: [20, 20]
      granularity: 10
      lanes:
        WE:
          speedLimit: 15
          polyline:
            - [-10, 0]
            - [10, 0]
  vehicles:
    - id: car-1
      intersectionId: im-1
      lane: WE
      length: 5
      width: 2
      speedLimit: 15
      maxAcceleration: 5
      maxDeceleration: 5
      approachDistance: 50
      initialSpeed: 10
      protocol: im
`)

		Convey("it decodes into a ScenarioConfig convertible to simenv configs", func() {
			scenario, err := config.LoadScenario(path)
			So(err, ShouldBeNil)
			So(scenario.Intersections, ShouldHaveLength, 1)
			So(scenario.Vehicles, ShouldHaveLength, 1)
			So(scenario.Vehicles[0].Protocol, ShouldEqual, "im")

			isecs, err := scenario.BuildIntersections()
			So(err, ShouldBeNil)
			So(isecs, ShouldHaveLength, 1)
			So(isecs[0].ID, ShouldEqual, "im-1")
			So(isecs[0].Lanes, ShouldContainKey, "WE")
			So(isecs[0].Lanes["WE"].Length(), ShouldEqual, 20)

			vehicles := scenario.VehicleConfigs()
			So(vehicles, ShouldHaveLength, 1)
			So(vehicles[0].ID, ShouldEqual, "car-1")
			So(vehicles[0].IntersectionID, ShouldEqual, "im-1")
		})
	})
}

func reservationDefaults() struct {
	Delta, TimeBuffer, EdgeTileTimeBuffer, SafetyBufferX, SafetyBufferY, MustAccelerateThreshold float64
} {
	d := struct {
		Delta, TimeBuffer, EdgeTileTimeBuffer, SafetyBufferX, SafetyBufferY, MustAccelerateThreshold float64
	}{}
	p := config.ReservationConfig{}.ParamsOrDefault()
	d.Delta = p.Delta
	d.TimeBuffer = p.TimeBuffer
	d.EdgeTileTimeBuffer = p.EdgeTileTimeBuffer
	d.SafetyBufferX = p.SafetyBufferX
	d.SafetyBufferY = p.SafetyBufferY
	d.MustAccelerateThreshold = p.MustAccelerateThreshold
	return d
}
