// Package pipeline turns a reader statistics database into a reading calendar:
// read rows, normalize, merge into sessions, emit the .ics file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"readcal/internal/ics"
	appLog "readcal/internal/log"
	"readcal/internal/model"
	"readcal/internal/session"
	"readcal/internal/stats"
)

// Every failure returned by Run wraps exactly one of these.
var (
	ErrSourceUnavailable = errors.New("statistics database unavailable")
	ErrQueryFailed       = errors.New("statistics query failed")
	ErrNoData            = errors.New("no reading records found")
	ErrWriteFailed       = errors.New("calendar write failed")
)

// Options holds everything one run needs.
type Options struct {
	// DatabasePath is the statistics SQLite file to read.
	DatabasePath string
	// OutputPath is the .ics file to create or overwrite.
	OutputPath string

	// Location is the display timezone for all timestamps.
	Location *time.Location

	Merge session.Options

	ProductID    string
	CalendarName string

	// Now is used as DTSTAMP. Zero means time.Now().
	Now time.Time
}

// Result summarizes a successful run.
type Result struct {
	Events   int
	Sessions []model.ReadingSession
}

// TotalReading returns the summed duration of all sessions.
func (r Result) TotalReading() time.Duration {
	var total time.Duration
	for _, s := range r.Sessions {
		total += s.Duration()
	}
	return total
}

// Run executes one full conversion. Nothing is written unless at least one
// session was produced.
func Run(ctx context.Context, opts Options) (Result, error) {
	events, err := loadEvents(ctx, opts.DatabasePath, opts.Location)
	if err != nil {
		return Result{}, err
	}

	sessions := session.Merge(events, opts.Merge)
	appLog.Info("sessions merged",
		"events", len(events),
		"sessions", len(sessions),
		"gap", opts.Merge.Gap,
		"strategy", opts.Merge.Strategy,
	)

	cal := ics.Build(sessions, ics.EmitOptions{
		ProductID:    opts.ProductID,
		CalendarName: opts.CalendarName,
		Location:     opts.Location,
		Stamp:        opts.Now,
	})
	if err := ics.WriteFile(opts.OutputPath, cal); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return Result{Events: len(events), Sessions: sessions}, nil
}

// loadEvents opens the database, reads and normalizes the page records. The
// handle is closed before returning on every path.
func loadEvents(ctx context.Context, path string, loc *time.Location) ([]model.PageEvent, error) {
	store, err := stats.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			appLog.Error("stats database close failed", cerr, "path", path)
		}
	}()

	rows, err := store.PageRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	events := stats.Normalize(rows, loc)
	appLog.Info("page records loaded", "path", path, "rows", len(rows), "usable", len(events))
	if len(events) == 0 {
		return nil, ErrNoData
	}
	return events, nil
}
