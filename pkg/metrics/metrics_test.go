package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.deathsRecorded.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_deaths_recorded_total")
			})
		})

		Convey("When creating two managers on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the duplicate registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestPackageRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording domain metrics", func() {
			before := value(globalManager.deathsRecorded)
			RecordDeath()
			RecordStoreEvictions(2)
			RecordStoreEvictions(0)
			UpdateStoreRecords(5)
			UpdateStoreCapacity(200)
			UpdateWindowEvents(3)
			RecordAttribution("overkill")
			RecordEventIngested("Spell")
			RecordEventDropped("other_target")

			Convey("Then the collectors reflect the values", func() {
				So(value(globalManager.deathsRecorded), ShouldEqual, before+1)
				So(value(globalManager.storeRecords), ShouldEqual, 5)
				So(value(globalManager.storeCapacity), ShouldEqual, 200)
				So(value(globalManager.windowEvents), ShouldEqual, 3)
				So(value(globalManager.attributions.WithLabelValues("overkill")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

// value reads the current value of a counter or gauge.
func value(c prometheus.Metric) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}
