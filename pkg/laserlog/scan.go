package laserlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanResult summarizes one ingestion pass.
type ScanResult struct {
	FilesScanned int
	LinesRead    int
	Sessions     int
}

// ScanDir replays every log file under dir through the reconstructor, files
// in sorted name order, lines in file order. The log rotation scheme names
// files so that the sort matches chronology, which keeps the combined
// stream in arrival order across file boundaries.
//
// An unreadable file or a corrupted timestamp aborts the scan: partial
// aggregates are worse than no aggregates.
func ScanDir(ctx context.Context, dir string, r *Reconstructor, logger *slog.Logger, emit func(Session) error) (ScanResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res ScanResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read log directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path := filepath.Join(dir, name)
		logger.DebugContext(ctx, "scanning log file", "path", path)
		if err := scanFile(path, r, &res, emit); err != nil {
			return res, err
		}
		res.FilesScanned++
	}

	logger.InfoContext(ctx, "scan complete",
		"files", res.FilesScanned,
		"lines", res.LinesRead,
		"sessions", res.Sessions)
	return res, nil
}

func scanFile(path string, r *Reconstructor, res *ScanResult, emit func(Session) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// bufio.Reader rather than bufio.Scanner: stack traces and raw dumps
	// get written into these logs, and a line too long for a Scanner
	// buffer is noise to skip, not a reason to abort the run.
	reader := bufio.NewReader(f)

	lineNo := 0
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			lineNo++
			res.LinesRead++

			ev, ok, err := Parse(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			if ok {
				err = r.Feed(ev, func(s Session) error {
					res.Sessions++
					return emit(s)
				})
				if err != nil {
					return fmt.Errorf("%s:%d: %w", path, lineNo, err)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
	}
}
