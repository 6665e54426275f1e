package window

import (
	"testing"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func hr(ts time.Time, v float64, activity string) model.Reading {
	return model.Reading{UserID: "u1", Metric: model.HeartRate, Timestamp: ts, Value: v, Activity: activity}
}

func spo2(ts time.Time, v float64) model.Reading {
	return model.Reading{UserID: "u1", Metric: model.SpO2, Timestamp: ts, Value: v, Activity: model.ActivityResting}
}

func bp(ts time.Time, sys, dia int) model.Reading {
	return model.Reading{UserID: "u1", Metric: model.BloodPressure, Timestamp: ts, Systolic: sys, Diastolic: dia, Activity: model.ActivityResting}
}

func TestAggregate(t *testing.T) {
	Convey("Given readings spread across three windows", t, func() {
		t0 := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
		a := NewAggregator()

		readings := []model.Reading{
			// window 06:05, listed first to check ordering
			hr(t0.Add(6*time.Minute), 80, model.ActivityResting),
			spo2(t0.Add(7*time.Minute), 97),
			bp(t0.Add(8*time.Minute), 121, 79),
			// window 06:00, complete with several samples
			hr(t0.Add(time.Minute), 70, model.ActivityResting),
			hr(t0.Add(2*time.Minute), 74, model.ActivityResting),
			hr(t0.Add(3*time.Minute), 150, "running"),
			spo2(t0.Add(time.Minute), 98),
			spo2(t0.Add(4*time.Minute), 95),
			bp(t0.Add(2*time.Minute), 118, 72),
			bp(t0.Add(3*time.Minute), 125, 70),
			// window 06:10 lacks blood pressure
			hr(t0.Add(11*time.Minute), 72, model.ActivityResting),
			spo2(t0.Add(12*time.Minute), 98),
			// untracked kinds are ignored
			{UserID: "u1", Metric: model.Steps, Timestamp: t0, Value: 30, Activity: model.ActivityResting},
		}

		out := a.Aggregate(readings)

		Convey("Then incomplete windows should be dropped", func() {
			So(len(out), ShouldEqual, 2)
		})

		Convey("Then windows should be ordered by start", func() {
			So(out[0].Start.Equal(t0), ShouldBeTrue)
			So(out[1].Start.Equal(t0.Add(5*time.Minute)), ShouldBeTrue)
		})

		Convey("Then each feature should use its reducer on resting samples only", func() {
			So(out[0].HeartRate, ShouldEqual, 72)
			So(out[0].SpO2, ShouldEqual, 95)
			So(out[0].Systolic, ShouldEqual, 125)
			So(out[0].Diastolic, ShouldEqual, 72)
		})

		Convey("Then every vector should carry all features", func() {
			for _, w := range out {
				So(len(w.Values()), ShouldEqual, len(model.FeatureNames))
				for _, v := range w.Values() {
					So(v, ShouldBeGreaterThan, 0)
				}
			}
		})

		Convey("Then resting counts should ignore exertion and untracked kinds", func() {
			So(a.CountResting(readings), ShouldEqual, 11)
		})
	})

	Convey("Given a custom width", t, func() {
		t0 := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
		a := NewAggregator(WithWidth(15 * time.Minute))
		out := a.Aggregate([]model.Reading{
			hr(t0, 60, model.ActivityResting),
			hr(t0.Add(14*time.Minute), 80, model.ActivityResting),
			spo2(t0.Add(10*time.Minute), 99),
			bp(t0.Add(12*time.Minute), 110, 70),
		})

		Convey("Then samples in the wider bucket should merge", func() {
			So(a.Width(), ShouldEqual, 15*time.Minute)
			So(len(out), ShouldEqual, 1)
			So(out[0].HeartRate, ShouldEqual, 70)
		})
	})

	Convey("Given no readings", t, func() {
		So(NewAggregator().Aggregate(nil), ShouldBeEmpty)
		So(NewAggregator().TrackedKinds(), ShouldResemble, []model.MetricKind{model.HeartRate, model.SpO2, model.BloodPressure})
	})
}
