package stats

import (
	"math"
	"slices"
	"time"

	appLog "readcal/internal/log"
	"readcal/internal/model"
)

// Normalize converts raw join rows into PageEvents in loc, sorted by start.
//
// Rows with a NULL title, start_time or duration are dropped, as are rows
// with a negative duration. Dropped rows are not errors. A nil loc means UTC.
func Normalize(rows []RawRow, loc *time.Location) []model.PageEvent {
	if loc == nil {
		loc = time.UTC
	}

	events := make([]model.PageEvent, 0, len(rows))
	dropped := 0

	for _, r := range rows {
		if !r.Title.Valid || !r.StartTime.Valid || !r.Duration.Valid {
			dropped++
			continue
		}
		if r.Duration.Float64 < 0 {
			dropped++
			continue
		}

		events = append(events, model.PageEvent{
			Title:    r.Title.String,
			Start:    epochToTime(r.StartTime.Float64).In(loc),
			Duration: secondsToDuration(r.Duration.Float64),
		})
	}

	// The query already orders by start_time; stable sort keeps that order
	// for equal starts and covers sources that don't.
	slices.SortStableFunc(events, func(a, b model.PageEvent) int {
		return a.Start.Compare(b.Start)
	})

	if dropped > 0 {
		appLog.Debug("stats rows dropped during normalization", "dropped", dropped, "kept", len(events))
	}
	return events
}

func epochToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
