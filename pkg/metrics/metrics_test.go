package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.orderingMutations.WithLabelValues("insert", "ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_ordering_mutations_total")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ordering mutations", func() {
			before := testutil.ToFloat64(globalManager.orderingMutations.WithLabelValues("move", "ok"))
			RecordOrderingMutation("move", "ok", 2)

			Convey("Then the counter increases by one", func() {
				after := testutil.ToFloat64(globalManager.orderingMutations.WithLabelValues("move", "ok"))
				So(after-before, ShouldEqual, 1.0)
			})
		})

		Convey("When recording cache lookups", func() {
			before := testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues("demons", "hit"))
			RecordCacheLookup("demons", "hit")
			after := testutil.ToFloat64(globalManager.cacheLookups.WithLabelValues("demons", "hit"))

			So(after-before, ShouldEqual, 1.0)
		})

		Convey("When updating gauges", func() {
			UpdateEntriesTotal(150)
			UpdatePlayersTotal(12)
			UpdateQueueSize(3)

			So(testutil.ToFloat64(globalManager.entriesTotal), ShouldEqual, 150.0)
			So(testutil.ToFloat64(globalManager.playersTotal), ShouldEqual, 12.0)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3.0)
		})

		Convey("When the remaining helpers are called", func() {
			So(func() {
				RecordRecordTransition("submitted", "approved")
				RecordRecordSubmitted()
				RecordScoreComputation("ranking", 1.5)
				RecordGenerationBump("entries")
				RecordPreconditionFailed()
				RecordHTTPRequest("demons", "GET", "200")
				RecordHTTPRequestDuration("demons", "GET", "200", 3)
				UpdateQueueCapacity(10)
				RecordQueueEnqueue()
				RecordQueueRejected("full")
				RecordNotificationDelivered()
				RecordNotificationFailed()
				RecordNotificationDuplicate()
				RecordNotificationRedelivered()
				UpdateWorkerCount(2)
				RecordErrorByComponent("records", "conflict")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)
		})

		Convey("When the registry is requested", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}

func TestMetricsDisabled(t *testing.T) {
	Convey("Given a disabled global manager", t, func() {
		saved := globalManager
		globalManager = NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(prometheus.NewRegistry()))
		defer func() { globalManager = saved }()

		RecordOrderingMutation("delete", "ok", 1)

		Convey("Then nothing is recorded", func() {
			So(testutil.ToFloat64(globalManager.orderingMutations.WithLabelValues("delete", "ok")), ShouldEqual, 0.0)
		})
	})
}
