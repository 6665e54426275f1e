package seedwindows_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vitalsync/internal/adapters/repository"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/internal/domain/window"
	"github.com/okian/vitalsync/internal/seedwindows"
	"github.com/okian/vitalsync/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

var end = time.Date(2026, 3, 3, 10, 7, 30, 0, time.UTC)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g := seedwindows.NewGenerator(3)
		readings, anomalies := g.Generate("u1", end, 20, 0)

		Convey("Every window carries all three resting vitals", func() {
			So(readings, ShouldHaveLength, 60)
			So(anomalies, ShouldEqual, 0)
			ws := window.NewAggregator().Aggregate(readings)
			So(ws, ShouldHaveLength, 20)
			So(ws[19].Start.Equal(time.Date(2026, 3, 3, 10, 5, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Values stay within physiological bounds", func() {
			for _, r := range readings {
				So(r.Activity, ShouldEqual, model.ActivityResting)
				switch r.Metric {
				case model.HeartRate:
					So(r.Value, ShouldBeBetweenOrEqual, 45.0, 150.0)
				case model.SpO2:
					So(r.Value, ShouldBeBetweenOrEqual, 85.0, 100.0)
				case model.BloodPressure:
					So(r.Systolic, ShouldBeBetweenOrEqual, 90, 200)
					So(r.Diastolic, ShouldBeBetweenOrEqual, 55, 130)
				}
			}
		})

		Convey("The same seed reproduces the same readings", func() {
			again, _ := seedwindows.NewGenerator(3).Generate("u1", end, 20, 0)
			So(again, ShouldResemble, readings)
		})
	})

	Convey("Anomaly injection is capped at the window count", t, func() {
		_, anomalies := seedwindows.NewGenerator(1).Generate("u1", end, 4, 10)
		So(anomalies, ShouldEqual, 4)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()

		res, err := seedwindows.Run(ctx, store, seedwindows.Config{UserID: "u1", Email: "u1@example.com", Windows: 12, End: end, Seed: 9})
		So(err, ShouldBeNil)
		So(res.CreatedUser, ShouldBeTrue)
		So(res.Readings, ShouldEqual, 36)

		u, err := store.GetUser(ctx, "u1")
		So(err, ShouldBeNil)
		So(u.LastSyncedAt, ShouldBeNil)

		Convey("Re-running with the same seed writes nothing new", func() {
			res, err := seedwindows.Run(ctx, store, seedwindows.Config{UserID: "u1", Windows: 12, End: end, Seed: 9})
			So(err, ShouldBeNil)
			So(res.CreatedUser, ShouldBeFalse)
			So(res.Readings, ShouldEqual, 0)
			So(res.Duplicates, ShouldEqual, 36)
		})
	})

	Convey("A missing user id is generated", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		res, err := seedwindows.Run(ctx, store, seedwindows.Config{End: end, Seed: 2})
		So(err, ShouldBeNil)
		So(res.UserID, ShouldNotBeEmpty)
		So(res.Windows, ShouldEqual, seedwindows.DefaultWindows)
	})
}
