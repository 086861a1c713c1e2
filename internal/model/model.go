package model

import "time"

// Cycle identifies which of the two alternating email digest runs is
// executing. The morning cycle covers everything since the last evening
// run, and vice versa, so the two jointly cover the full day.
type Cycle string

const (
	CycleMorning Cycle = "morning"
	CycleEvening Cycle = "evening"
)

// Opposite returns the other cycle kind. The window for a cycle starts
// where the opposite cycle last ended.
func (c Cycle) Opposite() Cycle {
	if c == CycleMorning {
		return CycleEvening
	}
	return CycleMorning
}

// Valid reports whether c is one of the two known cycle kinds.
func (c Cycle) Valid() bool {
	return c == CycleMorning || c == CycleEvening
}

// SyncWindow is the half-open [Start, End) time range of source data
// considered by one sync cycle. Computed once per cycle and never
// mutated afterwards; Start is always <= End.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// SourceRecord is one normalized unit of mailbox input: a displayable
// sender, subject and excerpt, a deep link back to the message, and the
// label of the account it came from. Immutable once fetched.
type SourceRecord struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
	Source  string `json:"source"`
}

// Group is one labeled digest cluster produced by the summarizer.
// It exists only within a single cycle; once written to the remote
// store it is discarded.
type Group struct {
	Title   string `json:"title"`
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// CalendarEvent is a single assignment/event instance from the calendar
// feed. Summary is the raw feed title and, together with DueDate, forms
// the natural dedup key in the remote store.
type CalendarEvent struct {
	Title   string
	Course  string // empty when the feed title carried no course code
	DueDate time.Time
	Summary string
}
