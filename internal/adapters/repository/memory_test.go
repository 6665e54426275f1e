package repository

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vitalsync/internal/domain/model"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func hr(ts time.Time, v float64) model.Reading {
	return model.Reading{Metric: model.HeartRate, Timestamp: ts, Value: v, Activity: model.ActivityResting}
}

func TestMemoryStoreCommit(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := NewMemoryStore(ctx)
		defer s.Close()
		So(s.CreateUser(ctx, model.User{ID: "u1", AccessToken: "tok"}), ShouldBeNil)

		batch := model.Batch{
			UserID: "u1",
			Readings: []model.Reading{
				hr(t0, 61),
				hr(t0.Add(time.Minute), 62),
				{Metric: model.BloodPressure, Timestamp: t0, Systolic: 118, Diastolic: 72, Activity: model.ActivityResting},
			},
			Sleep: []model.SleepInterval{model.NewSleepInterval("u1", t0.Add(-8*time.Hour), t0.Add(-time.Hour))},
		}
		wm := t0.Add(2 * time.Hour)

		Convey("Commit writes rows and the watermark together", func() {
			res, err := s.Commit(ctx, batch, wm)
			So(err, ShouldBeNil)
			So(res.Readings, ShouldEqual, 3)
			So(res.Sleep, ShouldEqual, 1)
			So(res.Added(), ShouldEqual, 4)
			So(res.PerMetric[model.HeartRate], ShouldEqual, 2)

			u, err := s.GetUser(ctx, "u1")
			So(err, ShouldBeNil)
			So(u.LastSyncedAt, ShouldNotBeNil)
			So(u.LastSyncedAt.Equal(wm), ShouldBeTrue)

			Convey("Committing the same batch again adds nothing", func() {
				res, err := s.Commit(ctx, batch, wm)
				So(err, ShouldBeNil)
				So(res.Added(), ShouldEqual, 0)
				So(res.Duplicates, ShouldEqual, 4)
			})

			Convey("A zero watermark leaves the stored one untouched", func() {
				_, err := s.Commit(ctx, model.Batch{UserID: "u1"}, time.Time{})
				So(err, ShouldBeNil)
				u, _ := s.GetUser(ctx, "u1")
				So(u.LastSyncedAt.Equal(wm), ShouldBeTrue)
			})
		})

		Convey("Sub-second timestamps collapse onto the same second", func() {
			b := model.Batch{UserID: "u1", Readings: []model.Reading{
				hr(t0.Add(100*time.Millisecond), 60),
				hr(t0.Add(900*time.Millisecond), 61),
			}}
			res, err := s.Commit(ctx, b, time.Time{})
			So(err, ShouldBeNil)
			So(res.Readings, ShouldEqual, 1)
			So(res.Duplicates, ShouldEqual, 1)
		})
	})
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with committed data", t, func() {
		s := NewMemoryStore(ctx, WithSnapshotInterval(time.Hour))
		defer s.Close()
		So(s.CreateUser(ctx, model.User{ID: "u1", AccessToken: "tok"}), ShouldBeNil)
		So(s.CreateUser(ctx, model.User{ID: "u2"}), ShouldBeNil)
		_, err := s.Commit(ctx, model.Batch{
			UserID: "u1",
			Readings: []model.Reading{
				hr(t0, 60),
				hr(t0.Add(24*time.Hour), 65),
				{Metric: model.Steps, Timestamp: t0, Value: 100, Activity: "walking"},
			},
			Sleep: []model.SleepInterval{model.NewSleepInterval("u1", t0.Add(-10*time.Hour), t0.Add(-2*time.Hour))},
		}, t0)
		So(err, ShouldBeNil)
		day := model.DayStart(t0, time.UTC)

		Convey("ReadingTimestamps is scoped to metric and half-open range", func() {
			ts, err := s.ReadingTimestamps(ctx, "u1", model.HeartRate, day, day.Add(24*time.Hour))
			So(err, ShouldBeNil)
			So(ts, ShouldHaveLength, 1)
			So(ts[0].Equal(t0), ShouldBeTrue)
		})

		Convey("SleepIntervals returns intervals overlapping the range", func() {
			ivs, err := s.SleepIntervals(ctx, "u1", day, day.Add(24*time.Hour))
			So(err, ShouldBeNil)
			So(ivs, ShouldHaveLength, 1)
			So(ivs[0].DurationHours, ShouldEqual, 8)
		})

		Convey("Readings filters by kind", func() {
			rs, err := s.Readings(ctx, "u1", []model.MetricKind{model.Steps}, day, day.Add(48*time.Hour))
			So(err, ShouldBeNil)
			So(rs, ShouldHaveLength, 1)
			So(rs[0].Activity, ShouldEqual, "walking")

			all, err := s.Readings(ctx, "u1", nil, day, day.Add(48*time.Hour))
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)
		})

		Convey("An inverted range is rejected", func() {
			_, err := s.Readings(ctx, "u1", nil, day, day)
			So(err, ShouldEqual, ErrInvalidRange)
		})

		Convey("Only users with a token are listed", func() {
			users, err := s.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldHaveLength, 1)
			So(users[0].ID, ShouldEqual, "u1")
		})

		Convey("Users can be looked up and updated", func() {
			So(s.CreateUser(ctx, model.User{ID: "u1"}), ShouldEqual, ErrUserExists)
			_, err := s.GetUser(ctx, "nobody")
			So(err, ShouldEqual, ErrNotFound)
			So(s.SetAccessToken(ctx, "u2", "tok2"), ShouldBeNil)
			So(s.SetAccessToken(ctx, "nobody", "x"), ShouldEqual, ErrNotFound)
		})

		Convey("Refresh publishes current stats", func() {
			s.Refresh()
			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Users, ShouldEqual, 1)
			So(st.Readings, ShouldEqual, 3)
			So(st.SleepIntervals, ShouldEqual, 1)
			So(st.PerMetric["heart_rate"], ShouldEqual, 2)
		})
	})
}
