package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sectonic/Automation/internal/model"
	"github.com/Sectonic/Automation/internal/tracker"
)

type stubFetcher struct {
	label   string
	records []model.SourceRecord
	err     error
	gotWin  model.SyncWindow
}

func (f *stubFetcher) Fetch(_ context.Context, w model.SyncWindow) ([]model.SourceRecord, error) {
	f.gotWin = w
	return f.records, f.err
}

func (f *stubFetcher) Label() string { return f.label }

type stubSummarizer struct {
	groups []model.Group
	err    error
	got    []model.SourceRecord
}

func (s *stubSummarizer) Summarize(_ context.Context, records []model.SourceRecord) ([]model.Group, error) {
	s.got = records
	return s.groups, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newEmailSync(t *testing.T, fetchers []MailFetcher, sum *stubSummarizer, store *stubStore, now time.Time) *EmailSync {
	t.Helper()
	return &EmailSync{
		Tracker:      tracker.New(filepath.Join(t.TempDir(), "tracking.json")),
		Fetchers:     fetchers,
		Summarizer:   sum,
		Notion:       store,
		DataSourceID: "db",
		now:          fixedClock(now),
	}
}

func TestEmailCycleCreatesPagePerGroupAndAdvances(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{label: "personal", records: []model.SourceRecord{
		{From: "a@x", Subject: "s1", Source: "personal"},
		{From: "b@x", Subject: "s2", Source: "personal"},
	}}
	sum := &stubSummarizer{groups: []model.Group{
		{Title: "School stuff", Label: "School", Summary: "see [syllabus](https://cs.example/s)"},
		{Title: "Bills", Label: "Administrative", Summary: "pay rent"},
	}}
	store := &stubStore{}

	s := newEmailSync(t, []MailFetcher{fetcher}, sum, store, now)
	if err := s.Run(context.Background(), model.CycleMorning); err != nil {
		t.Fatal(err)
	}

	if len(store.pages) != 2 {
		t.Fatalf("created %d pages, want 2", len(store.pages))
	}
	if len(sum.got) != 2 {
		t.Errorf("summarizer saw %d records, want 2", len(sum.got))
	}

	// The digest summary goes through the rich text encoder.
	segs := store.pages[0]["Summary"].RichText
	if len(segs) != 2 || segs[1].Text.Link == nil || segs[1].Text.Link.URL != "https://cs.example/s" {
		t.Errorf("summary segments = %#v", segs)
	}
	if sel := store.pages[0]["Label"].Select; sel == nil || sel.Name != "School" {
		t.Errorf("label = %#v", store.pages[0]["Label"])
	}
	if d := store.pages[0]["Date"].Date; d == nil || d.Start != "2024-01-01 12:00" {
		t.Errorf("date = %#v", store.pages[0]["Date"])
	}

	st := s.Tracker.Load()
	if st.LastMorningRun == nil || *st.LastMorningRun != "2024-01-01T12:00:00Z" {
		t.Errorf("morning cursor = %v", st.LastMorningRun)
	}
	if st.LastEveningRun != nil {
		t.Error("evening cursor should be untouched")
	}
}

func TestEmailCycleEmptyWindowStillAdvancesCursor(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	store := &stubStore{}
	sum := &stubSummarizer{}

	s := newEmailSync(t, []MailFetcher{&stubFetcher{label: "personal"}}, sum, store, now)
	if err := s.Run(context.Background(), model.CycleEvening); err != nil {
		t.Fatal(err)
	}

	if sum.got != nil {
		t.Error("summarizer should not run for an empty window")
	}
	if len(store.pages) != 0 {
		t.Errorf("created %d pages, want 0", len(store.pages))
	}
	st := s.Tracker.Load()
	if st.LastEveningRun == nil || *st.LastEveningRun != "2024-01-01T20:00:00Z" {
		t.Errorf("evening cursor = %v", st.LastEveningRun)
	}
}

func TestEmailCycleFetchErrorDoesNotAdvanceCursor(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newEmailSync(t,
		[]MailFetcher{&stubFetcher{label: "personal", err: errors.New("network down")}},
		&stubSummarizer{}, &stubStore{}, now)

	if err := s.Run(context.Background(), model.CycleMorning); err == nil {
		t.Fatal("expected error")
	}

	st := s.Tracker.Load()
	if st.LastMorningRun != nil {
		t.Errorf("cursor advanced after failed fetch: %v", *st.LastMorningRun)
	}
}

func TestEmailCycleWriteErrorDoesNotAdvanceCursor(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{label: "personal", records: []model.SourceRecord{{Subject: "s"}}}
	sum := &stubSummarizer{groups: []model.Group{{Title: "g", Label: "School", Summary: "x"}}}
	store := &stubStore{createErr: errors.New("503")}

	s := newEmailSync(t, []MailFetcher{fetcher}, sum, store, now)
	if err := s.Run(context.Background(), model.CycleMorning); err == nil {
		t.Fatal("expected error")
	}

	st := s.Tracker.Load()
	if st.LastMorningRun != nil {
		t.Errorf("cursor advanced after failed write: %v", *st.LastMorningRun)
	}
}

func TestEmailCycleWindowChainsFromOppositeCursor(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{label: "personal"}
	s := newEmailSync(t, []MailFetcher{fetcher}, &stubSummarizer{}, &stubStore{}, now)

	prior := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Tracker.Advance(model.CycleEvening, prior); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(context.Background(), model.CycleMorning); err != nil {
		t.Fatal(err)
	}
	if !fetcher.gotWin.Start.Equal(prior) || !fetcher.gotWin.End.Equal(now) {
		t.Errorf("window = %v..%v, want %v..%v", fetcher.gotWin.Start, fetcher.gotWin.End, prior, now)
	}
}

func TestEmailCycleRejectsUnknownCycle(t *testing.T) {
	s := newEmailSync(t, nil, &stubSummarizer{}, &stubStore{}, time.Now())
	if err := s.Run(context.Background(), model.Cycle("midnight")); err == nil {
		t.Fatal("expected error")
	}
}
