// Package energy looks up the laser's power telemetry in a time-series
// store. The cutter reports its PWM duty cycle to InfluxDB; the mean over a
// session's interval is the raw energy proxy for that session.
package energy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	client "github.com/influxdata/influxdb1-client/v2"
	"golang.org/x/time/rate"
)

// ErrNoData reports that the store holds no points for the interval. It is
// distinct from a legitimate zero mean: callers that can live without
// telemetry treat it as "unknown", not as a measurement.
var ErrNoData = errors.New("no energy data for interval")

// Querier is the capability the aggregator needs: a mean energy level over
// an interval. Implementations must return ErrNoData for an empty interval
// rather than folding it into transport failures.
type Querier interface {
	MeanEnergy(ctx context.Context, start, end time.Time) (float64, error)
}

// Config holds InfluxDB connection parameters.
type Config struct {
	Addr        string // endpoint, e.g. http://localhost:8086
	Database    string
	Username    string
	Password    string
	Measurement string // series holding the duty-cycle samples
	Field       string // sampled field, defaults to "value"

	Timeout          time.Duration
	QueriesPerSecond float64 // client-side limit, 0 picks the default
}

const (
	defaultTimeout = 10 * time.Second
	defaultQPS     = 10
	defaultField   = "value"

	retryAttempts = 3
	retryDelay    = 200 * time.Millisecond
)

// Client queries an InfluxDB 1.x endpoint. Transient transport failures are
// retried with backoff, and a client-side rate limiter keeps a large batch
// from hammering the store with one query per session.
type Client struct {
	influx  client.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	cfg     Config
}

// NewClient validates cfg and opens the HTTP client. Reachability is not
// checked here; the first query surfaces it.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("energy: addr is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("energy: database is required")
	}
	if cfg.Measurement == "" {
		return nil, errors.New("energy: measurement is required")
	}
	if cfg.Field == "" {
		cfg.Field = defaultField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	qps := cfg.QueriesPerSecond
	if qps <= 0 {
		qps = defaultQPS
	}
	if logger == nil {
		logger = slog.Default()
	}

	influx, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("energy: create influx client: %w", err)
	}

	return &Client{
		influx:  influx,
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.influx.Close()
}

// MeanEnergy returns the mean of the configured field over [start, end].
func (c *Client) MeanEnergy(ctx context.Context, start, end time.Time) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	q := fmt.Sprintf("SELECT MEAN(%q) FROM %q WHERE time >= '%s' AND time <= '%s'",
		c.cfg.Field, c.cfg.Measurement,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	var mean float64
	err := retry.Do(
		func() error {
			m, err := c.queryMean(q)
			if err != nil {
				return err
			}
			mean = m
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// An empty interval is an answer, not a failure.
			return !errors.Is(err, ErrNoData)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "retrying energy query", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, ErrNoData
		}
		return 0, fmt.Errorf("energy: query %s: %w", c.cfg.Addr, err)
	}
	return mean, nil
}

func (c *Client) queryMean(q string) (float64, error) {
	// The pinned client has no context-aware Query; the HTTP client's
	// Timeout bounds each call, and cancellation is honored at the
	// limiter.Wait and retry.Context layers around this.
	resp, err := c.influx.Query(client.NewQuery(q, c.cfg.Database, "s"))
	if err != nil {
		return 0, err
	}
	if resp.Error() != nil {
		return 0, resp.Error()
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Series) == 0 {
		return 0, ErrNoData
	}
	row := resp.Results[0].Series[0]
	if len(row.Values) == 0 || len(row.Values[0]) < 2 || row.Values[0][1] == nil {
		return 0, ErrNoData
	}

	num, ok := row.Values[0][1].(json.Number)
	if !ok {
		return 0, fmt.Errorf("unexpected mean value %T in response", row.Values[0][1])
	}
	mean, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("parse mean %q: %w", num, err)
	}
	return mean, nil
}
