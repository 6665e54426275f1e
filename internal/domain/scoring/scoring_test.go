package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type memArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemArtifacts() *memArtifacts { return &memArtifacts{blobs: map[string][]byte{}} }

func (m *memArtifacts) Put(_ context.Context, userID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = append([]byte(nil), blob...)
	return nil
}

func (m *memArtifacts) Get(_ context.Context, userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[userID]
	if !ok {
		return nil, scoring.ErrNoArtifacts
	}
	return b, nil
}

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// baseline produces n resting windows starting at from, spaced 5 minutes apart.
func baseline(rng *rand.Rand, from time.Time, n int) []model.WindowedVector {
	out := make([]model.WindowedVector, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.WindowedVector{
			Start:     from.Add(time.Duration(i) * 5 * time.Minute),
			HeartRate: 70 + rng.NormFloat64()*3,
			SpO2:      98 + rng.NormFloat64()*0.5,
			Systolic:  118 + rng.NormFloat64()*4,
			Diastolic: 78 + rng.NormFloat64()*3,
		})
	}
	return out
}

func TestStatusThreshold(t *testing.T) {
	Convey("Given the default alert threshold", t, func() {
		So(scoring.StatusFor(20.0), ShouldEqual, scoring.StatusOK)
		So(scoring.StatusFor(20.01), ShouldEqual, scoring.StatusAlert)
		So(scoring.StatusFor(0), ShouldEqual, scoring.StatusOK)
	})
}

func TestScaler(t *testing.T) {
	Convey("Given rows with one constant column", t, func() {
		rows := [][]float64{{1, 5}, {3, 5}}
		s, err := scoring.FitScaler(rows)
		So(err, ShouldBeNil)

		Convey("It uses population std and replaces zero std with one", func() {
			So(s.Mean, ShouldResemble, []float64{2, 5})
			So(s.Scale, ShouldResemble, []float64{1, 1})
			x, err := s.Transform([]float64{3, 5})
			So(err, ShouldBeNil)
			So(x, ShouldResemble, []float64{1, 0})
		})

		Convey("It rejects vectors of the wrong width", func() {
			_, err := s.Transform([]float64{1})
			So(err, ShouldEqual, scoring.ErrDimensionMismatch)
		})
	})
}

func TestEnvelope(t *testing.T) {
	Convey("Given an envelope fitted on standard normal data", t, func() {
		rng := rand.New(rand.NewSource(3))
		rows := make([][]float64, 200)
		for i := range rows {
			rows[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		}
		env, err := scoring.FitEnvelope(rows, 0.05)
		So(err, ShouldBeNil)
		So(env.Threshold, ShouldBeGreaterThan, 0)

		Convey("About the contamination share of training rows is outside", func() {
			out := 0
			for _, r := range rows {
				flag, _, err := env.Predict(r)
				So(err, ShouldBeNil)
				if flag {
					out++
				}
			}
			So(out, ShouldBeBetweenOrEqual, 5, 15)
		})

		Convey("A far point is an outlier and the centre is not", func() {
			flag, _, err := env.Predict([]float64{8, 0, 0})
			So(err, ShouldBeNil)
			So(flag, ShouldBeTrue)
			flag, _, err = env.Predict([]float64{0, 0, 0})
			So(err, ShouldBeNil)
			So(flag, ShouldBeFalse)
		})
	})

	Convey("Given constant training data", t, func() {
		rows := [][]float64{{0, 0}, {0, 0}, {0, 0}}
		_, err := scoring.FitEnvelope(rows, 0.05)
		So(err, ShouldBeNil)
	})
}

func TestTopContributors(t *testing.T) {
	Convey("Given windows where only heart rate varies bimodally", t, func() {
		var ws []model.WindowedVector
		for i := 0; i < 10; i++ {
			hr := 70.0
			if i%2 == 0 {
				hr = 140
			}
			ws = append(ws, model.WindowedVector{
				HeartRate: hr,
				SpO2:      98 + []float64{0, 0.1, -0.4, 0.2, 0, 0.3, -0.1, 0, 0.1, -0.2}[i],
				Systolic:  118,
				Diastolic: 78,
			})
		}
		cs := scoring.TopContributors(ws, 2)
		So(cs, ShouldHaveLength, 2)
		So(cs[0].Label, ShouldEqual, "Heart Rate")
		So(cs[0].MeanAbsZ, ShouldAlmostEqual, 1.0, 1e-9)
		So(cs[1].Label, ShouldEqual, "SpO2")
		So(scoring.Labels(cs), ShouldResemble, []string{"Heart Rate", "SpO2"})
	})

	Convey("Given no windows", t, func() {
		So(scoring.TopContributors(nil, 2), ShouldBeNil)
	})
}

func TestTrainer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a trainer with the default floor", t, func() {
		store := newMemArtifacts()
		now := day0.Add(72 * time.Hour)
		tr := scoring.NewTrainer(store, scoring.WithClock(func() time.Time { return now }))
		rng := rand.New(rand.NewSource(1))

		Convey("It refuses fewer than ten windows and stores nothing", func() {
			_, err := tr.Train(ctx, "u1", baseline(rng, day0, 9))
			So(errors.Is(err, scoring.ErrInsufficientWindows), ShouldBeTrue)
			meta, err := scoring.Metadata(ctx, store, "u1")
			So(err, ShouldBeNil)
			So(meta, ShouldBeNil)
		})

		Convey("It persists artifacts with metadata", func() {
			meta, err := tr.Train(ctx, "u1", baseline(rng, day0, 40))
			So(err, ShouldBeNil)
			So(meta.WindowCount, ShouldEqual, 40)
			So(meta.ModelVersion, ShouldEqual, scoring.ModelVersion)
			So(meta.Metrics, ShouldResemble, model.FeatureNames)
			So(meta.LastTrained.Equal(now), ShouldBeTrue)

			stored, err := scoring.Metadata(ctx, store, "u1")
			So(err, ShouldBeNil)
			So(stored, ShouldNotBeNil)
			So(stored.WindowCount, ShouldEqual, 40)
		})

		Convey("Corrupt artifacts are reported", func() {
			So(store.Put(ctx, "u2", []byte("{not json")), ShouldBeNil)
			_, err := scoring.Load(ctx, store, "u2")
			So(errors.Is(err, scoring.ErrCorruptArtifacts), ShouldBeTrue)
		})
	})
}

func TestDayScorer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a scorer", t, func() {
		store := newMemArtifacts()
		sc := scoring.NewDayScorer(store)
		rng := rand.New(rand.NewSource(11))

		Convey("A day without resting vitals has no data", func() {
			v, err := sc.Score(ctx, scoring.Input{UserID: "u1", Date: "2025-03-03"})
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, scoring.StatusNoData)
			So(v.Date, ShouldEqual, "2025-03-03")
		})

		Convey("Fewer than three windows is insufficient", func() {
			v, err := sc.Score(ctx, scoring.Input{UserID: "u1", Date: "2025-03-03", RestingReadings: 12, Windows: baseline(rng, day0, 2)})
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, scoring.StatusInsufficient)
			So(v.TotalRecords, ShouldEqual, 2)
		})

		Convey("Without artifacts the model is not trained", func() {
			v, err := sc.Score(ctx, scoring.Input{UserID: "u1", Date: "2025-03-03", RestingReadings: 30, Windows: baseline(rng, day0, 5)})
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, scoring.StatusNotTrained)
		})
	})
}

func TestEndToEndAnomalousDay(t *testing.T) {
	ctx := context.Background()

	Convey("Given two days of normal resting windows used for training", t, func() {
		store := newMemArtifacts()
		rng := rand.New(rand.NewSource(42))
		history := append(baseline(rng, day0, 96), baseline(rng, day0.Add(24*time.Hour), 96)...)

		_, err := scoring.NewTrainer(store).Train(ctx, "u1", history)
		So(err, ShouldBeNil)

		Convey("A third day with five forced HR=140 windows alerts", func() {
			day3 := day0.Add(48 * time.Hour)
			offsets := []float64{0, 0.2, -0.3, 0.1, 0.4, -0.1, 0, -0.2, 0.3, 0.1}
			var ws []model.WindowedVector
			for i := 0; i < 10; i++ {
				hr := 70.0
				if i < 5 {
					hr = 140
				}
				ws = append(ws, model.WindowedVector{
					Start:     day3.Add(time.Duration(i) * 5 * time.Minute),
					HeartRate: hr,
					SpO2:      98 + offsets[i],
					Systolic:  118 + offsets[(i+3)%10]*5,
					Diastolic: 78 + offsets[(i+6)%10]*4,
				})
			}

			v, err := scoring.NewDayScorer(store).Score(ctx, scoring.Input{
				UserID: "u1", Date: "2025-03-03", RestingReadings: 40, Windows: ws,
			})
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, scoring.StatusAlert)
			So(v.Anomalies, ShouldBeGreaterThanOrEqualTo, 4)
			So(v.TotalRecords, ShouldEqual, 10)
			So(v.PercentAnomalies, ShouldBeGreaterThan, 20)
			So(v.TopContributors, ShouldContain, "Heart Rate")
			So(v.ModelVersion, ShouldEqual, scoring.ModelVersion)
			So(v.Series, ShouldHaveLength, 10)
			for i := 0; i < 5; i++ {
				So(v.Series[i].IsAnomaly, ShouldBeTrue)
			}
		})
	})
}
