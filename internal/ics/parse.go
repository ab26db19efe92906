package ics

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "readcal/internal/log"
	"readcal/internal/model"
)

// ParseSessions decodes an iCalendar payload back into reading sessions,
// one per VEVENT, with times converted to loc (nil means UTC). It reads
// calendars produced by Build, so written output can be checked against the
// sessions it came from.
//
//   - It relies on the underlying library's TZID handling to construct
//     time.Time values with the right Location.
//   - Events missing DTSTART or DTEND are skipped and logged.
func ParseSessions(body []byte, loc *time.Location) ([]model.ReadingSession, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	sessions := make([]model.ReadingSession, 0)
	for _, ve := range cal.Events() {
		s, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "uid", eventUID(ve))
			continue
		}
		sessions = append(sessions, s)
	}

	appLog.Debug("ics parse completed", "event_count", len(sessions))
	return sessions, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.ReadingSession, error) {
	var out model.ReadingSession

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}

	out.Start = start.In(loc)
	out.End = end.In(loc)
	return out, nil
}

func eventUID(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}
