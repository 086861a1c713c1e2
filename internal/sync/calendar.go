package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Sectonic/Automation/internal/ics"
	appLog "github.com/Sectonic/Automation/internal/log"
)

// FeedFetcher downloads a raw calendar feed body.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CanvasSync mirrors the Canvas assignment feed into a Notion database.
// Unlike the email path it is fully idempotent: every event goes through
// the dedup-upsert check, so rerunning over the same feed is safe.
type CanvasSync struct {
	Fetcher      FeedFetcher
	Notion       NotionAPI
	DataSourceID string
	FeedURL      string
	Horizon      time.Duration

	now func() time.Time
}

func (s *CanvasSync) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Run downloads and parses the feed, then upserts every event. The
// whole feed is processed sequentially; the first upstream or remote
// error aborts the run.
func (s *CanvasSync) Run(ctx context.Context) error {
	body, err := s.Fetcher.Fetch(ctx, s.FeedURL)
	if err != nil {
		return fmt.Errorf("canvas sync: %w", err)
	}

	horizon := s.Horizon
	if horizon <= 0 {
		horizon = 90 * 24 * time.Hour
	}
	events, err := ics.Events(body, s.clock(), horizon)
	if err != nil {
		return fmt.Errorf("canvas sync: parse feed: %w", err)
	}

	created, skipped := 0, 0
	for _, ev := range events {
		ok, err := UpsertEvent(ctx, s.Notion, s.DataSourceID, ev)
		if err != nil {
			return fmt.Errorf("canvas sync: upsert %q: %w", ev.Title, err)
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}

	appLog.Info("canvas sync completed", "events", len(events), "created", created, "skipped", skipped)
	return nil
}
