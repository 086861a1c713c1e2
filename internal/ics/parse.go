package ics

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/Sectonic/Automation/internal/log"
)

// summaryPattern splits a trailing bracketed course code off a raw feed
// title, e.g. "Homework 3 [CS 4510]" -> ("Homework 3", "CS 4510").
var summaryPattern = regexp.MustCompile(`^(.*?)\s*\[([^\]]+)\]\s*$`)

// parsedEvent is one VEVENT before recurrence expansion.
type parsedEvent struct {
	UID     string
	Summary string
	Start   time.Time
	AllDay  bool

	RawRRule string
	ExDates  []time.Time
}

// parseFeed parses an ICS payload into the per-event form used by
// expansion. Events without a SUMMARY or DTSTART are skipped; a bad
// VEVENT never aborts the rest of the feed.
func parseFeed(body []byte) ([]parsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]parsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, ok := parseVEvent(comp)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (parsedEvent, bool) {
	var out parsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}

	p := ve.GetProperty(ical.ComponentPropertySummary)
	if p == nil || p.Value == "" {
		return out, false
	}
	out.Summary = p.Value

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, false
	}

	// VALUE=DATE or a value without a time component means all-day.
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}

	start, err := ve.GetStartAt()
	if err != nil {
		if allDay, adErr := ve.GetAllDayStartAt(); adErr == nil {
			start = allDay
		} else {
			appLog.Error("ics vevent has unparsable DTSTART", err, "uid", out.UID)
			return out, false
		}
	}
	out.Start = start

	if rr := ve.GetProperty(ical.ComponentPropertyRrule); rr != nil {
		out.RawRRule = rr.Value
	}

	for _, ex := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(ex.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, perr := parseICSTime(part); perr == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, true
}

// splitCourse separates a trailing [COURSE] code from a raw feed title.
// The second result is empty when no course code is present.
func splitCourse(summary string) (title, course string) {
	if m := summaryPattern.FindStringSubmatch(summary); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(summary), ""
}

// parseICSTime parses basic ICS date/date-time strings (UTC, floating
// and date-only forms) as used in EXDATE values.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("ics: empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
