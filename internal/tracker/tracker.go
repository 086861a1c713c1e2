package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
)

// State holds the persisted per-cycle cursors: the end timestamp of the
// last successful run of each cycle kind, as RFC 3339 strings. Nil means
// the cycle has never run.
type State struct {
	LastMorningRun *string `json:"last_morning_run"`
	LastEveningRun *string `json:"last_evening_run"`
}

func (s *State) cursor(c model.Cycle) *string {
	if c == model.CycleMorning {
		return s.LastMorningRun
	}
	return s.LastEveningRun
}

func (s *State) setCursor(c model.Cycle, v string) {
	if c == model.CycleMorning {
		s.LastMorningRun = &v
	} else {
		s.LastEveningRun = &v
	}
}

// Tracker persists cycle cursors in a small JSON document at a fixed
// path. Read-modify-write with last-writer-wins: callers must serialize
// cycles across processes (daemon mode holds a file lock for this).
type Tracker struct {
	path string
}

func New(path string) *Tracker {
	return &Tracker{path: path}
}

// Load reads the persisted state. A missing or corrupt file yields the
// default empty state, never an error.
func (t *Tracker) Load() State {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return State{}
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		appLog.Error("tracker state corrupt, using defaults", err, "path", t.path)
		return State{}
	}
	return s
}

// Window computes the sync window for a cycle from the current persisted
// state. See ComputeWindow.
func (t *Tracker) Window(cycle model.Cycle, now time.Time) model.SyncWindow {
	return ComputeWindow(t.Load(), cycle, now)
}

// ComputeWindow derives the window for one cycle: the start is the
// opposite cycle's cursor (a morning run picks up where the prior
// evening run ended, and vice versa), so alternating runs jointly cover
// the day without gaps. When the opposite cursor is absent or
// unparsable, the start defaults to now minus twelve hours, truncated to
// the top of the hour. The end is always now. Deterministic for a given
// (state, cycle, now).
func ComputeWindow(s State, cycle model.Cycle, now time.Time) model.SyncWindow {
	start := now.Add(-12 * time.Hour).Truncate(time.Hour)

	if prev := s.cursor(cycle.Opposite()); prev != nil {
		if t, err := time.Parse(time.RFC3339, *prev); err == nil {
			start = t
		}
	}

	return model.SyncWindow{Start: start, End: now}
}

// Advance persists a new cursor for the given cycle, leaving the other
// cursor untouched. The full record is rewritten atomically (temp file
// in the same directory, then rename) so a crash never leaves a partial
// document behind.
func (t *Tracker) Advance(cycle model.Cycle, ts time.Time) error {
	s := t.Load()
	s.setCursor(cycle, ts.UTC().Format(time.RFC3339))

	data, err := json.MarshalIndent(&s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tracking-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		return err
	}

	appLog.Info("tracker cursor advanced", "cycle", cycle, "timestamp", ts.UTC().Format(time.RFC3339), "path", t.path)
	return nil
}
