package ics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "readcal/internal/log"
	"readcal/internal/model"
)

// localTimestampFormat is a DATE-TIME value paired with a TZID parameter.
const localTimestampFormat = "20060102T150405"

// DefaultProductID is used when EmitOptions.ProductID is empty.
const DefaultProductID = "-//Reading Calendar//example.com//"

// uidNamespace scopes the name-based UUIDs used as event UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("readcal:reading-session"))

// EmitOptions controls calendar construction.
type EmitOptions struct {
	// ProductID is written as PRODID. Empty means DefaultProductID.
	ProductID string

	// CalendarName, if set, is written as X-WR-CALNAME.
	CalendarName string

	// Location is the timezone DTSTART/DTEND are expressed in. Named IANA
	// zones are written with a TZID parameter; anything else (nil, UTC,
	// fixed offsets) is written in UTC form.
	Location *time.Location

	// Stamp is written as every event's DTSTAMP. Zero means time.Now().
	Stamp time.Time
}

// Build converts sessions into a VCALENDAR with one VEVENT per session.
//
// Event UIDs are derived from title and start time, so rebuilding the same
// sessions yields the same UIDs and calendar clients update rather than
// duplicate events on re-import.
func Build(sessions []model.ReadingSession, opts EmitOptions) *ical.Calendar {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}
	tzid := tzidFor(opts.Location)

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetVersion("2.0")
	if opts.CalendarName != "" {
		cal.SetXWRCalName(opts.CalendarName)
	}
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	for _, s := range sessions {
		ev := cal.AddEvent(sessionUID(s))
		ev.SetDtStampTime(opts.Stamp)
		ev.SetSummary(s.Title)

		if tzid == "" {
			ev.SetStartAt(s.Start)
			ev.SetEndAt(s.End)
			continue
		}
		tzParam := ical.WithTZID(tzid)
		ev.SetProperty(ical.ComponentPropertyDtStart, s.Start.In(opts.Location).Format(localTimestampFormat), tzParam)
		ev.SetProperty(ical.ComponentPropertyDtEnd, s.End.In(opts.Location).Format(localTimestampFormat), tzParam)
	}

	appLog.Debug("ics calendar built", "event_count", len(sessions), "tzid", tzid)
	return cal
}

// WriteFile serializes cal and writes it to path via a temp file + rename in
// the destination directory, so readers never see a half-written calendar.
func WriteFile(path string, cal *ical.Calendar) error {
	if path == "" {
		return errors.New("ics: output path is empty")
	}
	if cal == nil {
		return errors.New("ics: calendar is nil")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".readcal-*.ics.tmp")
	if err != nil {
		return fmt.Errorf("ics: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return fmt.Errorf("ics: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ics: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ics: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("ics: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ics: rename to %s: %w", path, err)
	}

	appLog.Info("ics calendar written", "path", path)
	return nil
}

// tzidFor returns the IANA name to use as TZID, or "" when times should be
// written in UTC form.
func tzidFor(loc *time.Location) string {
	if loc == nil {
		return ""
	}
	name := loc.String()
	switch name {
	case "", "UTC", "Local":
		return ""
	}
	// Fixed zones carry arbitrary names that calendar clients can't resolve.
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

func sessionUID(s model.ReadingSession) string {
	key := s.Title + "\x00" + s.Start.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}
