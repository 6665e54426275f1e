// Package fitness is the REST client for the remote fitness provider.
package fitness

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/vitalsync/internal/domain/activity"
	"github.com/okian/vitalsync/internal/domain/metric"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
	"github.com/okian/vitalsync/pkg/tracing"
)

// Provider constants.
const (
	ActivitySegmentDataType = "com.google.activity.segment"
	// SleepActivityType is the session activity code for sleep.
	SleepActivityType = 72

	metricBucketMillis   = int64(time.Hour / time.Millisecond)
	activityBucketMillis = int64(24 * time.Hour / time.Millisecond)

	aggregatePath = "/dataset:aggregate"
	sessionsPath  = "/sessions"
)

// Session is one sleep session reported by the provider.
type Session struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Client calls the provider's aggregate and sessions endpoints.
type Client struct {
	http         *resty.Client
	timeout      time.Duration
	sessionsPath string
	log          logger.Logger
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		timeout:      30 * time.Second,
		sessionsPath: sessionsPath,
		log:          logger.Get().Named("fitness"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return c
}

// FetchMetricSeries returns the raw points of dataType in [startMillis, endMillis)
// using hourly buckets.
func (c *Client) FetchMetricSeries(ctx context.Context, token, dataType string, startMillis, endMillis int64) ([]metric.Point, error) {
	body := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataType}},
		BucketByTime:    bucketByTime{DurationMillis: metricBucketMillis},
		StartTimeMillis: startMillis,
		EndTimeMillis:   endMillis,
	}
	var out aggregateResponse
	if err := c.aggregate(ctx, token, dataType, body, &out); err != nil {
		return nil, err
	}
	var points []metric.Point
	for _, b := range out.Bucket {
		for _, ds := range b.Dataset {
			for _, p := range ds.Point {
				points = append(points, toPoint(p))
			}
		}
	}
	return points, nil
}

// FetchActivitySegments returns the labelled activity periods of one day.
func (c *Client) FetchActivitySegments(ctx context.Context, token string, startMillis, endMillis int64) ([]model.ActivitySegment, error) {
	body := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: ActivitySegmentDataType}},
		BucketByTime:    bucketByTime{DurationMillis: activityBucketMillis},
		StartTimeMillis: startMillis,
		EndTimeMillis:   endMillis,
	}
	var out aggregateResponse
	if err := c.aggregate(ctx, token, ActivitySegmentDataType, body, &out); err != nil {
		return nil, err
	}
	var segs []model.ActivitySegment
	for _, b := range out.Bucket {
		for _, ds := range b.Dataset {
			for _, p := range ds.Point {
				if len(p.Value) == 0 || p.Value[0].IntVal == nil {
					continue
				}
				segs = append(segs, model.ActivitySegment{
					Start: model.NormalizeTime(time.Unix(0, p.StartTimeNanos)),
					End:   model.NormalizeTime(time.Unix(0, p.EndTimeNanos)),
					Label: activity.Label(*p.Value[0].IntVal),
				})
			}
		}
	}
	return segs, nil
}

// FetchSleepSessions returns sleep sessions between two RFC 3339 instants.
// Sessions of other activity types are dropped.
func (c *Client) FetchSleepSessions(ctx context.Context, token, startISO, endISO string) ([]Session, error) {
	ctx, span := tracing.StartSpan(ctx, "fitness.sessions")
	defer span.End()

	var out sessionsResponse
	err := c.call(ctx, "sessions", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(map[string]string{"startTime": startISO, "endTime": endISO}).
			SetResult(&out).
			Get(c.sessionsPath)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	var sessions []Session
	for _, s := range out.Session {
		if s.ActivityType != SleepActivityType {
			continue
		}
		sessions = append(sessions, Session{
			ID:    s.ID,
			Start: model.NormalizeTime(time.UnixMilli(s.StartTimeMillis)),
			End:   model.NormalizeTime(time.UnixMilli(s.EndTimeMillis)),
		})
	}
	return sessions, nil
}

func (c *Client) aggregate(ctx context.Context, token, dataType string, body aggregateRequest, out *aggregateResponse) error {
	ctx, span := tracing.StartSpan(ctx, "fitness.aggregate", attribute.String("data_type", dataType))
	defer span.End()

	err := c.call(ctx, dataType, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(body).
			SetResult(out).
			Post(aggregatePath)
	})
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

// call runs do and maps the outcome onto the package's error kinds.
func (c *Client) call(ctx context.Context, endpoint string, do func() (*resty.Response, error)) error {
	start := time.Now()
	resp, err := do()
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordRemoteCall(endpoint, "transport_error", ms)
		c.log.Warn(ctx, "remote call failed", logger.String("endpoint", endpoint), logger.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		metrics.RecordRemoteCall(endpoint, "unauthorized", ms)
		return fmt.Errorf("%w: %s: status %d", ErrUnauthorized, endpoint, code)
	case code < 200 || code > 299:
		metrics.RecordRemoteCall(endpoint, "status_error", ms)
		c.log.Debug(ctx, "remote non-success status",
			logger.String("endpoint", endpoint), logger.Int("status", code))
		return fmt.Errorf("%w: %s: status %d", ErrRemoteStatus, endpoint, code)
	}
	metrics.RecordRemoteCall(endpoint, "ok", ms)
	return nil
}

func toPoint(p wirePoint) metric.Point {
	vals := make([]metric.Value, 0, len(p.Value))
	for _, v := range p.Value {
		vals = append(vals, metric.Value{FP: v.FPVal, Int: v.IntVal})
	}
	return metric.Point{StartNanos: p.StartTimeNanos, EndNanos: p.EndTimeNanos, Values: vals}
}
