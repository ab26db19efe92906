package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"readcal/internal/model"
)

var stamp = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleSessions(loc *time.Location) []model.ReadingSession {
	return []model.ReadingSession{
		{Title: "Book1", Start: time.Date(2024, 3, 1, 21, 0, 0, 0, loc), End: time.Date(2024, 3, 1, 21, 45, 0, 0, loc)},
		{Title: "Notes, Vol. 2; Annotated", Start: time.Date(2024, 3, 2, 8, 30, 0, 0, loc), End: time.Date(2024, 3, 2, 8, 30, 0, 0, loc)},
	}
}

func TestBuildUTCForm(t *testing.T) {
	loc := time.FixedZone("UTC+08:00", 8*60*60)
	cal := Build(sampleSessions(loc), EmitOptions{Location: loc, Stamp: stamp})
	out := cal.Serialize()

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + DefaultProductID,
		"SUMMARY:Book1",
		`SUMMARY:Notes\, Vol. 2\; Annotated`,
		"DTSTART:20240301T130000Z",
		"DTEND:20240301T134500Z",
		"DTSTAMP:20250102T030405Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized calendar missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "TZID=") {
		t.Errorf("fixed zones must not be written as TZID\n%s", out)
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d VEVENTs, want 2", got)
	}
}

func TestBuildNamedZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cal := Build(sampleSessions(loc), EmitOptions{
		Location:     loc,
		Stamp:        stamp,
		ProductID:    "-//Test//readcal//",
		CalendarName: "Reading",
	})
	out := cal.Serialize()

	for _, want := range []string{
		"PRODID:-//Test//readcal//",
		"X-WR-CALNAME:Reading",
		"X-WR-TIMEZONE:Asia/Shanghai",
		"DTSTART;TZID=Asia/Shanghai:20240301T210000",
		"DTEND;TZID=Asia/Shanghai:20240301T214500",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized calendar missing %q\n%s", want, out)
		}
	}

	parsed, err := ParseSessions([]byte(out), loc)
	if err != nil {
		t.Fatalf("ParseSessions: %v", err)
	}
	assertSameSessions(t, parsed, sampleSessions(loc))
}

func TestBuildDeterministicUIDs(t *testing.T) {
	sessions := sampleSessions(time.UTC)
	a := Build(sessions, EmitOptions{Stamp: stamp}).Serialize()
	b := Build(sessions, EmitOptions{Stamp: stamp}).Serialize()
	if a != b {
		t.Fatalf("Build output differs between runs:\n%s\n---\n%s", a, b)
	}
	if sessionUID(sessions[0]) == sessionUID(sessions[1]) {
		t.Fatal("distinct sessions share a UID")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reading_schedule.ics")

	// Pre-existing content must be replaced.
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	sessions := sampleSessions(time.UTC)
	if err := WriteFile(path, Build(sessions, EmitOptions{Stamp: stamp})); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseSessions(body, time.UTC)
	if err != nil {
		t.Fatalf("ParseSessions: %v", err)
	}
	assertSameSessions(t, parsed, sessions)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriteFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.ics")
	if err := WriteFile(path, Build(nil, EmitOptions{Stamp: stamp})); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestParseSessionsEmpty(t *testing.T) {
	if _, err := ParseSessions(nil, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func assertSameSessions(t *testing.T, got, want []model.ReadingSession) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d sessions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Title != want[i].Title || !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("session %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
