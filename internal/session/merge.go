// Package session coalesces page-turn records into reading sessions.
package session

import (
	"slices"
	"strings"
	"time"

	"readcal/internal/model"
)

// DefaultGap is the largest pause between two page records of the same
// title that still continues a session.
const DefaultGap = 600 * time.Second

// Strategy selects how interleaved titles are merged.
type Strategy string

const (
	// Sequential keeps a single open session; any title change closes it.
	Sequential Strategy = "sequential"
	// PerTitle keeps one open session per title, so reading A, then B, then
	// A again can still extend the first A session.
	PerTitle Strategy = "per_title"
)

// Options controls merging. The zero value means DefaultGap and Sequential.
type Options struct {
	Gap      time.Duration
	Strategy Strategy
}

// Merge coalesces events into reading sessions.
//
// events must be ordered by non-decreasing Start; Merge does not sort them.
// An event continues the open session for its title when
// event.Start - session.End <= Gap; titles match by exact string equality.
// Sessions are returned ordered by start time.
func Merge(events []model.PageEvent, opts Options) []model.ReadingSession {
	if opts.Gap <= 0 {
		opts.Gap = DefaultGap
	}
	if opts.Strategy == PerTitle {
		return mergePerTitle(events, opts.Gap)
	}
	return mergeSequential(events, opts.Gap)
}

func mergeSequential(events []model.PageEvent, gap time.Duration) []model.ReadingSession {
	var (
		out  []model.ReadingSession
		cur  model.ReadingSession
		open bool
	)

	for _, e := range events {
		if open && continues(cur, e, gap) {
			cur.End = maxTime(cur.End, e.End())
			continue
		}
		if open {
			out = append(out, cur)
		}
		cur = startSession(e)
		open = true
	}
	if open {
		out = append(out, cur)
	}
	return out
}

func mergePerTitle(events []model.PageEvent, gap time.Duration) []model.ReadingSession {
	var out []model.ReadingSession
	openByTitle := make(map[string]model.ReadingSession)
	// order keeps first-seen titles so the final flush is deterministic.
	var order []string

	for _, e := range events {
		cur, ok := openByTitle[e.Title]
		if ok && continues(cur, e, gap) {
			cur.End = maxTime(cur.End, e.End())
			openByTitle[e.Title] = cur
			continue
		}
		if ok {
			out = append(out, cur)
		} else {
			order = append(order, e.Title)
		}
		openByTitle[e.Title] = startSession(e)
	}
	for _, title := range order {
		out = append(out, openByTitle[title])
	}

	slices.SortStableFunc(out, func(a, b model.ReadingSession) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
	return out
}

func continues(cur model.ReadingSession, e model.PageEvent, gap time.Duration) bool {
	return e.Title == cur.Title && e.Start.Sub(cur.End) <= gap
}

func startSession(e model.PageEvent) model.ReadingSession {
	return model.ReadingSession{
		Title: e.Title,
		Start: e.Start,
		End:   e.End(),
	}
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
