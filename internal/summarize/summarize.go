package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
)

// Summarizer clusters mailbox records into labeled digest groups. The
// call is best-effort: implementations return an empty list rather than
// failing when the model output cannot be used.
type Summarizer interface {
	Summarize(ctx context.Context, records []model.SourceRecord) ([]model.Group, error)
}

const clusterPrompt = `You are an assistant that organizes emails into clear, useful digests by clustering related emails.

GOAL
- Produce only a small number of high-signal groups.
- Exclude spam/promotions/irrelevant clutter.

LABELS (pick exactly one per group)
- Personal: Friends/family, personal services, purchases, non-school matters.
- School: Assignments, class reminders, professors, academic info.
- Internships: Recruiters, applications, interviews, career opportunities.
- Administrative: Any logistics/official matters (bills, banking, IT, subscriptions, housing, government, university).
- Projects: Side projects, GitHub, hackathons, collaborations outside coursework.
- Social: Clubs, organizations, events, community activities.

INSTRUCTIONS
1) Read the emails (sender, subject, snippet, source, link).
2) Form coherent groups by topic.
3) In each group's Summary (brief), synthesize meaning and actions; do not restate snippets.
4) When referencing a concrete action or resource from a specific email (e.g. "coding assessment link" or "interview details"),
   create a Markdown link using the provided email's link: [anchor text](that email's link).
5) Keep the output compact and scannable.

OUTPUT FORMAT (valid JSON only, no extra text):
` + "```json" + `
[
  {
    "title": "<Concise Group Title>",
    "label": "<one of: Personal | School | Internships | Administrative | Projects | Social>",
    "summary": "<brief synthesis with some markdown links to specific emails if applicable>"
  }
]
` + "```" + `
`

// Claude is the Anthropic-backed Summarizer.
type Claude struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewClaude(apiKey, modelName string) *Claude {
	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(modelName),
	}
}

// Summarize sends the records to the model and decodes the JSON group
// list from its reply. A reply that fails to decode yields an empty
// list, never an error: a bad model response must not abort the cycle.
func (c *Claude) Summarize(ctx context.Context, records []model.SourceRecord) ([]model.Group, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(clusterPrompt + "\n\nEMAILS:\n" + formatRecords(records))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return decodeGroups(sb.String()), nil
}

// formatRecords renders records as the From/Subject/Snippet/Source/Link
// blocks the prompt describes.
func formatRecords(records []model.SourceRecord) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf(
			"Email:\nFrom: %s\nSubject: %s\nSnippet: %s\nSource: %s\nLink: %s",
			r.From, r.Subject, r.Snippet, r.Source, r.Link))
	}
	return strings.Join(blocks, "\n\n")
}

// decodeGroups extracts the JSON array from the model reply, stripping
// markdown code fences when present. Malformed output degrades to an
// empty list.
func decodeGroups(reply string) []model.Group {
	reply = stripFences(strings.TrimSpace(reply))

	var groups []model.Group
	if err := json.Unmarshal([]byte(reply), &groups); err != nil {
		appLog.Error("summarizer reply was not valid JSON, skipping", err, "reply_len", len(reply))
		return []model.Group{}
	}
	return groups
}

// stripFences removes a surrounding ```json ... ``` (or bare ```) block
// if present, returning the inner text.
func stripFences(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	return s
}
