package sync

import (
	"context"

	"github.com/Sectonic/Automation/internal/model"
	"github.com/Sectonic/Automation/internal/notion"
)

// NotionAPI is the slice of the remote store client the sync flows use.
type NotionAPI interface {
	QueryDatabase(ctx context.Context, dataSourceID string, filter notion.Filter) ([]notion.Page, error)
	CreatePage(ctx context.Context, dataSourceID string, properties notion.Properties) (notion.Page, error)
}

const dateOnly = "2006-01-02"

// UpsertEvent creates a remote page for the event unless one already
// exists. Existence means an exact match on both halves of the dedup
// key: the raw summary text AND the due date. Events sharing a summary
// but differing in date are distinct. A match is a no-op; existing pages
// are never updated in place. Returns whether a page was created.
func UpsertEvent(ctx context.Context, api NotionAPI, dataSourceID string, ev model.CalendarEvent) (bool, error) {
	filter := notion.Filter{
		"and": []any{
			map[string]any{
				"property":  "Summary",
				"rich_text": map[string]any{"equals": ev.Summary},
			},
			map[string]any{
				"property": "Date",
				"date":     map[string]any{"equals": ev.DueDate.Format(dateOnly)},
			},
		},
	}

	matches, err := api.QueryDatabase(ctx, dataSourceID, filter)
	if err != nil {
		return false, err
	}
	if len(matches) > 0 {
		return false, nil
	}

	properties := notion.Properties{
		"Title":   notion.Title(ev.Title),
		"Date":    notion.Date(ev.DueDate.Format(dateOnly)),
		"Done":    notion.Checkbox(false),
		"Summary": notion.Text(notion.Plain(ev.Summary)),
	}
	if ev.Course != "" {
		properties["Course"] = notion.Select(ev.Course)
	}

	if _, err := api.CreatePage(ctx, dataSourceID, properties); err != nil {
		return false, err
	}
	return true, nil
}
