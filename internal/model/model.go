package model

import "time"

// PageEvent is a single page-turn timing record tied to a book title,
// normalized into the display timezone.
type PageEvent struct {
	Title string

	// Start is the moment the page was opened, in the display timezone.
	Start time.Time
	// Duration is how long the page stayed open. Never negative.
	Duration time.Duration
}

// End returns Start + Duration.
func (e PageEvent) End() time.Time {
	return e.Start.Add(e.Duration)
}

// ReadingSession is a merged, continuous interval of reading on one title.
// End is never before Start.
type ReadingSession struct {
	Title string

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// Duration returns the length of the session.
func (s ReadingSession) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
