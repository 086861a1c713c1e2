package sync

import (
	"context"
	"fmt"
	"time"

	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
	"github.com/Sectonic/Automation/internal/notion"
	"github.com/Sectonic/Automation/internal/summarize"
	"github.com/Sectonic/Automation/internal/tracker"
)

// MailFetcher pulls the raw message records for one account.
type MailFetcher interface {
	Fetch(ctx context.Context, window model.SyncWindow) ([]model.SourceRecord, error)
	Label() string
}

// EmailSync runs one digest cycle: compute the window from the tracker,
// fetch from every account, cluster with the summarizer, push one page
// per group, then advance the cycle's cursor.
type EmailSync struct {
	Tracker      *tracker.Tracker
	Fetchers     []MailFetcher
	Summarizer   summarize.Summarizer
	Notion       NotionAPI
	DataSourceID string

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func (s *EmailSync) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Run executes one cycle of the given kind. Any fetch or write error
// aborts before the cursor advance, so a rerun covers the same window
// again (at-least-once). The digest path has no dedup key, so a cycle
// that fails mid-write can leave duplicate pages when retried; that risk
// is accepted, see DESIGN.md.
func (s *EmailSync) Run(ctx context.Context, cycle model.Cycle) error {
	if !cycle.Valid() {
		return fmt.Errorf("email sync: unknown cycle %q", cycle)
	}

	window := s.Tracker.Window(cycle, s.clock())
	appLog.Info("email cycle started", "cycle", cycle,
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339))

	var records []model.SourceRecord
	for _, f := range s.Fetchers {
		fetched, err := f.Fetch(ctx, window)
		if err != nil {
			return fmt.Errorf("email sync: fetch %s: %w", f.Label(), err)
		}
		records = append(records, fetched...)
	}

	if len(records) == 0 {
		appLog.Info("no emails in window, nothing to do", "cycle", cycle)
		return s.Tracker.Advance(cycle, window.End)
	}

	groups, err := s.Summarizer.Summarize(ctx, records)
	if err != nil {
		return fmt.Errorf("email sync: summarize: %w", err)
	}

	for _, g := range groups {
		properties := notion.Properties{
			"Title":   notion.Title(g.Title),
			"Label":   notion.Select(g.Label),
			"Summary": notion.Text(notion.EncodeRichText(g.Summary)...),
			"Date":    notion.Date(window.End.Format("2006-01-02 15:04")),
		}
		if _, err := s.Notion.CreatePage(ctx, s.DataSourceID, properties); err != nil {
			return fmt.Errorf("email sync: create page %q: %w", g.Title, err)
		}
	}

	appLog.Info("email cycle completed", "cycle", cycle, "emails", len(records), "groups", len(groups))
	return s.Tracker.Advance(cycle, window.End)
}
