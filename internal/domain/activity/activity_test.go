package activity

import (
	"testing"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIndex(t *testing.T) {
	Convey("Given a day with two activity segments", t, func() {
		day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		idx := NewIndex([]model.ActivitySegment{
			{Start: day.Add(7 * time.Hour), End: day.Add(8 * time.Hour), Label: Label(8)},
			{Start: day.Add(7*time.Hour + 30*time.Minute), End: day.Add(9 * time.Hour), Label: Label(7)},
		})

		Convey("When a timestamp falls in no interval", func() {
			Convey("Then it should be resting", func() {
				So(idx.Lookup(day.Add(3*time.Hour)), ShouldEqual, model.ActivityResting)
				So(idx.Lookup(day.Add(10*time.Hour)), ShouldEqual, model.ActivityResting)
			})
		})

		Convey("When a timestamp hits interval bounds", func() {
			Convey("Then both ends should be inclusive", func() {
				So(idx.Lookup(day.Add(7*time.Hour)), ShouldEqual, "running")
				So(idx.Lookup(day.Add(9*time.Hour)), ShouldEqual, "walking")
			})
		})

		Convey("When intervals overlap", func() {
			Convey("Then the first matching segment should win", func() {
				So(idx.Lookup(day.Add(7*time.Hour+45*time.Minute)), ShouldEqual, "running")
			})
		})

		Convey("Then the index should report its size", func() {
			So(idx.Len(), ShouldEqual, 2)
		})
	})

	Convey("Given a nil index", t, func() {
		var idx *Index
		So(idx.Lookup(time.Now()), ShouldEqual, model.ActivityResting)
		So(idx.Len(), ShouldEqual, 0)
	})
}

func TestLabel(t *testing.T) {
	Convey("Given provider activity codes", t, func() {
		So(Label(72), ShouldEqual, "sleeping")
		So(Label(3), ShouldEqual, "still")
		So(Label(109), ShouldEqual, "deep_sleep")
		So(Label(100), ShouldEqual, Unknown)
		So(Label(4242), ShouldEqual, Unknown)
	})
}
