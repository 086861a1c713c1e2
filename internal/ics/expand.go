package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
)

const maxOccurrencesPerEvent = 500

// Events parses a feed body and turns every VEVENT into calendar events
// ready for upserting. Non-recurring entries pass through once with
// their own start date as the due date; RRULE entries are expanded into
// one event per occurrence between now and now+horizon, honoring
// EXDATEs. The raw feed title is kept as the Summary because it forms
// half of the remote dedup key.
func Events(body []byte, now time.Time, horizon time.Duration) ([]model.CalendarEvent, error) {
	parsed, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(parsed))
	for _, ev := range parsed {
		if ev.RawRRule == "" {
			events = append(events, toCalendarEvent(ev, ev.Start))
			continue
		}
		for _, start := range occurrences(ev, now, now.Add(horizon)) {
			events = append(events, toCalendarEvent(ev, start))
		}
	}
	return events, nil
}

// occurrences expands a recurring event's RRULE within [rangeStart,
// rangeEnd], applying EXDATEs. An unparsable rule yields no occurrences
// rather than aborting the feed.
func occurrences(ev parsedEvent, rangeStart, rangeEnd time.Time) []time.Time {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(times) > maxOccurrencesPerEvent {
		appLog.Error("ics occurrence expansion truncated", errors.New("max occurrences reached"), "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		times = times[:maxOccurrencesPerEvent]
	}
	return times
}

func toCalendarEvent(ev parsedEvent, start time.Time) model.CalendarEvent {
	title, course := splitCourse(ev.Summary)
	due := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return model.CalendarEvent{
		Title:   title,
		Course:  course,
		DueDate: due,
		Summary: ev.Summary,
	}
}
