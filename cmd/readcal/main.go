package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"readcal/internal/config"
	appLog "readcal/internal/log"
	"readcal/internal/pipeline"
	"readcal/internal/session"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	database   string
	output     string
	timezone   string
	gapSeconds int
	strategy   string
	debug      bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one conversion and returns the process exit code.
func run(args []string) int {
	defer appLog.Sync()

	flags, err := parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		appLog.Error("invalid arguments", err)
		return 1
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	applyFlags(conf, flags)

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		return 1
	}

	appLog.Info("effective config",
		"database", conf.Database,
		"output", conf.Output,
		"timezone", loc.String(),
		"merge_gap_seconds", conf.MergeGapSeconds,
		"merge_strategy", conf.MergeStrategy,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, pipeline.Options{
		DatabasePath: conf.Database,
		OutputPath:   conf.Output,
		Location:     loc,
		Merge: session.Options{
			Gap:      conf.MergeGap(),
			Strategy: session.Strategy(conf.MergeStrategy),
		},
		ProductID:    conf.ProductID,
		CalendarName: conf.CalendarName,
	})
	if err != nil {
		appLog.Error(failureMessage(err), err)
		return 1
	}

	appLog.Info("calendar generated",
		"path", conf.Output,
		"sessions", len(res.Sessions),
		"events", res.Events,
		"total_reading", res.TotalReading().Round(time.Second),
	)
	return 0
}

// failureMessage maps pipeline failures to a user-facing line.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrSourceUnavailable):
		return "cannot open statistics database"
	case errors.Is(err, pipeline.ErrQueryFailed):
		return "cannot query reading records"
	case errors.Is(err, pipeline.ErrNoData):
		return "no reading records found"
	case errors.Is(err, pipeline.ErrWriteFailed):
		return "cannot write calendar file"
	default:
		return "calendar generation failed"
	}
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("readcal", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "", "Path to YAML config file (created with defaults if missing)")
	fs.StringVar(&cfg.database, "db", "", "Statistics SQLite database (overrides config)")
	fs.StringVar(&cfg.output, "out", "", "Output .ics path (overrides config)")
	fs.StringVar(&cfg.timezone, "tz", "", "IANA timezone for calendar times (overrides config)")
	fs.IntVar(&cfg.gapSeconds, "gap", 0, "Max pause in seconds that still continues a session (overrides config)")
	fs.StringVar(&cfg.strategy, "strategy", "", fmt.Sprintf("Merge strategy: %s or %s (overrides config)", config.StrategySequential, config.StrategyPerTitle))
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overlays set flags onto conf. A gap of 0 means "not set", so the
// configured merge gap is kept.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.database != "" {
		conf.Database = flags.database
	}
	if flags.output != "" {
		conf.Output = flags.output
	}
	if flags.timezone != "" {
		conf.Timezone = flags.timezone
	}
	if flags.gapSeconds > 0 {
		conf.MergeGapSeconds = flags.gapSeconds
	}
	if flags.strategy != "" {
		conf.MergeStrategy = flags.strategy
	}
	conf.Normalize()
}
