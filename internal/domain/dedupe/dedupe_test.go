package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/vitalsync/internal/domain/dedupe"
	"github.com/okian/vitalsync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When recording a user for the first time", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "user-1")

			Convey("Then it should return false and record it", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same user is recorded twice", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "user-1")
			seen := d.SeenAndRecord(ctx, "user-1")

			Convey("Then the second call should report it as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "user-1")
			d.Unrecord(ctx, "user-1")
			d.Unrecord(ctx, "missing")

			Convey("Then the id should be accepted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "user-1"), ShouldBeFalse)
			})
		})

		Convey("When using bounded mode at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 3; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("user-%d", i))
			}
			d.SeenAndRecord(ctx, "user-4")

			Convey("Then the oldest entry should be evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "user-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "user-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "user-1"), ShouldBeFalse)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("user-%d", i))
			}

			Convey("Then nothing should be evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})
	})

	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0

		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("user-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id should be newly recorded exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

func TestDayCache(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a day cache seeded from the store", t, func() {
		c := dedupe.NewDayCache()
		stored := []time.Time{day.Add(time.Hour), day.Add(2 * time.Hour)}
		c.SeedReadings(ctx, "u1", model.HeartRate, day, stored)

		Convey("Then the day should be marked as seeded", func() {
			So(c.Seeded("u1", model.HeartRate, day), ShouldBeTrue)
			So(c.Seeded("u1", model.HeartRate, day.AddDate(0, 0, 1)), ShouldBeFalse)
			So(c.Seeded("u1", model.SpO2, day), ShouldBeFalse)
		})

		Convey("When a stored timestamp arrives with sub-second jitter", func() {
			seen := c.SeenAndRecordReading(ctx, "u1", model.HeartRate, day.Add(time.Hour+400*time.Millisecond))

			Convey("Then it should be treated as present", func() {
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When a new timestamp arrives twice in one pass", func() {
			first := c.SeenAndRecordReading(ctx, "u1", model.HeartRate, day.Add(3*time.Hour))
			second := c.SeenAndRecordReading(ctx, "u1", model.HeartRate, day.Add(3*time.Hour))

			Convey("Then only the first should be accepted", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(c.Size("u1", model.HeartRate), ShouldEqual, 3)
			})
		})

		Convey("When the same timestamp arrives for another metric or user", func() {
			Convey("Then scopes should not interfere", func() {
				So(c.SeenAndRecordReading(ctx, "u1", model.SpO2, day.Add(time.Hour)), ShouldBeFalse)
				So(c.SeenAndRecordReading(ctx, "u2", model.HeartRate, day.Add(time.Hour)), ShouldBeFalse)
			})
		})
	})

	Convey("Given sleep pairs spanning midnight", t, func() {
		c := dedupe.NewDayCache()
		start := day.Add(22 * time.Hour)
		end := day.Add(30 * time.Hour)
		c.SeedSleep(ctx, "u1", day, nil)

		first := c.SeenAndRecordSleep(ctx, "u1", start, end)
		c.SeedSleep(ctx, "u1", day.AddDate(0, 0, 1), nil)
		again := c.SeenAndRecordSleep(ctx, "u1", start, end)

		Convey("Then a pair staged on the first day should stay known on the next", func() {
			So(first, ShouldBeFalse)
			So(again, ShouldBeTrue)
			So(c.Size("u1", model.Sleep), ShouldEqual, 1)
		})

		Convey("When the store already holds a pair", func() {
			c.SeedSleep(ctx, "u1", day, []model.SleepInterval{model.NewSleepInterval("u1", day, day.Add(time.Hour))})

			Convey("Then it should be reported as seen", func() {
				So(c.SeenAndRecordSleep(ctx, "u1", day, day.Add(time.Hour)), ShouldBeTrue)
			})
		})
	})
}
