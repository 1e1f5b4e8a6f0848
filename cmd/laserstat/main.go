// Package main implements a CLI tool that reconstructs laser-cutter usage
// sessions from the machine's logs and correlates them with energy
// telemetry from InfluxDB.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/codeGROOVE-dev/gsm"

	"github.com/fablab-tools/laserstat/internal/archive"
	"github.com/fablab-tools/laserstat/pkg/energy"
	"github.com/fablab-tools/laserstat/pkg/usage"
)

func main() {
	logDir := flag.String("logs", "logs", "Directory of laser log files")
	influxAddr := flag.String("influx-addr", "http://localhost:8086", "InfluxDB endpoint URL")
	influxDB := flag.String("influx-db", "laser", "InfluxDB database name")
	influxUser := flag.String("influx-user", "", "InfluxDB username")
	measurement := flag.String("measurement", "laser_power", "Measurement holding the duty-cycle samples")
	dutyCycle := flag.Float64("duty-cycle", usage.DefaultConfig().DutyCycle, "PWM duty cycle regarded as full power")
	archivePath := flag.String("archive", "", "Optional SQLite file to archive sessions into")
	format := flag.String("format", "human", "Output format: human or json")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reconstruct laser-cutter usage sessions and report per-user totals.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  INFLUX_ADDR, INFLUX_DATABASE, INFLUX_USERNAME, INFLUX_PASSWORD\n")
		fmt.Fprintf(os.Stderr, "  override the corresponding flags; the password additionally falls\n")
		fmt.Fprintf(os.Stderr, "  back to Google Secret Manager.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --logs /var/log/laser\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --logs /var/log/laser --duty-cycle 0.55 --format json\n", os.Args[0])
	}

	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	querier, err := energy.NewClient(energy.Config{
		Addr:        envOr("INFLUX_ADDR", *influxAddr),
		Database:    envOr("INFLUX_DATABASE", *influxDB),
		Username:    envOr("INFLUX_USERNAME", *influxUser),
		Password:    influxPassword(ctx, logger),
		Measurement: *measurement,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create energy client: %v", err)
	}
	defer querier.Close()

	req := &usage.Request{
		LogDir:  *logDir,
		Querier: querier,
		Config:  usage.Config{DutyCycle: *dutyCycle},
		Logger:  logger,
	}

	var arch *archive.Archive
	if *archivePath != "" {
		arch, err = archive.Open(*archivePath)
		if err != nil {
			log.Fatalf("Failed to open session archive: %v", err)
		}
		defer arch.Close()
		req.Archive = arch
	}

	result, err := usage.Analyze(ctx, req)
	if err != nil {
		// No partial summary: printing totals built from half the logs
		// would imply completeness.
		log.Fatalf("Analysis failed: %v", err)
	}

	if arch != nil {
		if n, err := arch.Count(ctx); err != nil {
			logger.WarnContext(ctx, "failed to count archived sessions", "error", err)
		} else {
			logger.InfoContext(ctx, "session archive updated", "path", *archivePath, "rows", n)
		}
	}

	switch *format {
	case "human":
		printHumanReadable(result)
	case "json":
		printJSON(result)
	default:
		log.Fatalf("Unknown format: %s (must be human or json)", *format)
	}
}

// influxPassword resolves the endpoint credential: environment first, then
// Google Secret Manager. An empty credential is fine for unauthenticated
// endpoints.
func influxPassword(ctx context.Context, logger *slog.Logger) string {
	if pw := os.Getenv("INFLUX_PASSWORD"); pw != "" {
		return pw
	}
	pw, err := gsm.Fetch(ctx, "INFLUX_PASSWORD")
	if err != nil {
		logger.DebugContext(ctx, "no INFLUX_PASSWORD in Secret Manager", "error", err)
		return ""
	}
	return pw
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printHumanReadable outputs the per-user summary, heaviest user first.
func printHumanReadable(r *usage.Result) {
	fmt.Printf("LASER USAGE SUMMARY\n")
	fmt.Printf("===================\n\n")
	for _, row := range r.Rows {
		fmt.Printf("%-16s  energy %-16s  %3d sessions  user %s (%s)\n",
			row.Duration, row.WeightedEnergy, row.Sessions, row.UserID, row.UserName)
	}
	fmt.Printf("\nFound %d sessions for %d users in %d files\n",
		r.TotalSessions, r.DistinctUsers, r.FilesScanned)
}

// printJSON outputs the summary in JSON format.
func printJSON(r *usage.Result) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		log.Fatalf("Failed to encode JSON: %v", err)
	}
}
