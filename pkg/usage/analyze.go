package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fablab-tools/laserstat/pkg/energy"
	"github.com/fablab-tools/laserstat/pkg/laserlog"
)

// SessionSink receives each completed session after it has been aggregated,
// with its Energy field filled in. Optional; used for the SQLite archive.
type SessionSink interface {
	Store(ctx context.Context, s laserlog.Session) error
}

// Request bundles the inputs for one batch analysis.
type Request struct {
	LogDir  string
	Querier energy.Querier
	Config  Config
	Logger  *slog.Logger // optional
	Archive SessionSink  // optional
}

// Result is the outcome of a run.
type Result struct {
	Rows          []Row `json:"rows"`
	TotalSessions int   `json:"total_sessions"`
	DistinctUsers int   `json:"distinct_users"`
	FilesScanned  int   `json:"files_scanned"`
}

// Analyze ingests every log file under LogDir in a single pass and returns
// the per-user summary. This is the shared path for the CLI and tests.
//
// Any error aborts the run without a result: an unreadable file, a
// corrupted timestamp, an out-of-order session pair, or an unreachable
// energy store. Recoverable noise (unparseable lines, identity payloads
// without user fields, orphaned control events, empty telemetry intervals)
// is absorbed along the way.
func Analyze(ctx context.Context, req *Request) (*Result, error) {
	if req.LogDir == "" {
		return nil, errors.New("usage: log directory is required")
	}

	agg, err := NewAggregator(req.Querier, req.Config, req.Logger)
	if err != nil {
		return nil, err
	}
	rec := laserlog.NewReconstructor(req.Logger)

	emit := func(s laserlog.Session) error {
		if err := agg.Record(ctx, &s); err != nil {
			return err
		}
		if req.Archive != nil {
			if err := req.Archive.Store(ctx, s); err != nil {
				return fmt.Errorf("archive session: %w", err)
			}
		}
		return nil
	}

	scan, err := laserlog.ScanDir(ctx, req.LogDir, rec, req.Logger, emit)
	if err != nil {
		return nil, err
	}

	return &Result{
		Rows:          agg.Summarize(rec.Names()),
		TotalSessions: agg.TotalSessions(),
		DistinctUsers: agg.DistinctUsers(),
		FilesScanned:  scan.FilesScanned,
	}, nil
}
