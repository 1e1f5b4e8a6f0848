// Package usage aggregates reconstructed laser sessions into per-user
// usage and energy totals.
package usage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fablab-tools/laserstat/pkg/energy"
	"github.com/fablab-tools/laserstat/pkg/laserlog"
)

// Config holds the tunable calibration parameters.
type Config struct {
	// DutyCycle is the PWM duty cycle regarded as full power. Raw telemetry
	// means are divided by it before weighting. This is a physical
	// calibration constant for the cutter, not derived data.
	DutyCycle float64
}

// DefaultConfig returns the calibration for the shop's current tube.
func DefaultConfig() Config {
	return Config{DutyCycle: 0.6}
}

// Totals is the running aggregate for one user. An entry is created on the
// user's first session and never removed during a run.
type Totals struct {
	Duration       time.Duration
	WeightedEnergy time.Duration // sum of duration x normalized mean energy
	Sessions       int
}

// Aggregator folds completed sessions into per-user totals, consulting the
// energy store once per session.
type Aggregator struct {
	querier energy.Querier
	logger  *slog.Logger
	cfg     Config

	totals        map[string]*Totals
	totalSessions int
}

// NewAggregator builds an empty aggregator around the given energy
// capability.
func NewAggregator(querier energy.Querier, cfg Config, logger *slog.Logger) (*Aggregator, error) {
	if querier == nil {
		return nil, errors.New("usage: querier is required")
	}
	if cfg.DutyCycle <= 0 {
		return nil, fmt.Errorf("usage: duty cycle must be positive, got %v", cfg.DutyCycle)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		querier: querier,
		logger:  logger,
		cfg:     cfg,
		totals:  make(map[string]*Totals),
	}, nil
}

// userTotals is the get-or-insert-zero accessor for a user's entry.
func (a *Aggregator) userTotals(id string) *Totals {
	t, ok := a.totals[id]
	if !ok {
		t = &Totals{}
		a.totals[id] = t
	}
	return t
}

// Record folds one session into the totals. The session's Energy field is
// filled with the normalized mean. A store with no points for the interval
// counts the session for time but not for energy; a transport failure is
// returned and aborts the run.
func (a *Aggregator) Record(ctx context.Context, s *laserlog.Session) error {
	mean, err := a.querier.MeanEnergy(ctx, s.Start, s.End)
	switch {
	case errors.Is(err, energy.ErrNoData):
		a.logger.DebugContext(ctx, "no telemetry for session",
			"user", s.UserID, "start", s.Start.Format(time.RFC3339))
		mean = 0
	case err != nil:
		return fmt.Errorf("energy lookup for session %s..%s: %w",
			s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), err)
	}
	s.Energy = mean / a.cfg.DutyCycle

	d := s.Duration()
	t := a.userTotals(s.UserID)
	t.Duration += d
	t.WeightedEnergy += time.Duration(float64(d) * s.Energy)
	t.Sessions++
	a.totalSessions++
	return nil
}

// TotalSessions is the number of sessions recorded across all users.
func (a *Aggregator) TotalSessions() int {
	return a.totalSessions
}

// DistinctUsers is the number of users with at least one session.
func (a *Aggregator) DistinctUsers() int {
	return len(a.totals)
}

// Row is one line of the usage summary.
type Row struct {
	UserID         string        `json:"user_id"`
	UserName       string        `json:"user_name"`
	Duration       time.Duration `json:"duration_ns"`
	WeightedEnergy time.Duration `json:"weighted_energy_ns"`
	Sessions       int           `json:"sessions"`
}

// Summarize renders per-user rows sorted by cumulative duration, longest
// first. Ties fall back to descending user id so the order is
// deterministic. Users that never appeared in an identity event resolve to
// the name "unknown".
func (a *Aggregator) Summarize(names map[string]string) []Row {
	rows := make([]Row, 0, len(a.totals))
	for id, t := range a.totals {
		name := names[id]
		if name == "" {
			name = "unknown"
		}
		rows = append(rows, Row{
			UserID:         id,
			UserName:       name,
			Duration:       t.Duration,
			WeightedEnergy: t.WeightedEnergy,
			Sessions:       t.Sessions,
		})
	}
	slices.SortFunc(rows, func(x, y Row) int {
		if c := cmp.Compare(y.Duration, x.Duration); c != 0 {
			return c
		}
		return cmp.Compare(y.UserID, x.UserID)
	})
	return rows
}
