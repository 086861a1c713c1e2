package summarize

import (
	"strings"
	"testing"

	"github.com/Sectonic/Automation/internal/model"
)

func TestDecodeGroupsPlainJSON(t *testing.T) {
	reply := `[{"title":"School","label":"School","summary":"two assignments due"}]`
	groups := decodeGroups(reply)
	if len(groups) != 1 || groups[0].Title != "School" || groups[0].Label != "School" {
		t.Errorf("groups = %#v", groups)
	}
}

func TestDecodeGroupsStripsJSONFence(t *testing.T) {
	reply := "Here you go:\n```json\n[{\"title\":\"t\",\"label\":\"Personal\",\"summary\":\"s\"}]\n```\nanything after"
	groups := decodeGroups(reply)
	if len(groups) != 1 || groups[0].Label != "Personal" {
		t.Errorf("groups = %#v", groups)
	}
}

func TestDecodeGroupsStripsBareFence(t *testing.T) {
	reply := "```\n[{\"title\":\"t\",\"label\":\"Social\",\"summary\":\"s\"}]\n```"
	groups := decodeGroups(reply)
	if len(groups) != 1 || groups[0].Label != "Social" {
		t.Errorf("groups = %#v", groups)
	}
}

func TestDecodeGroupsMalformedYieldsEmptyList(t *testing.T) {
	for _, reply := range []string{
		"I could not cluster these emails.",
		"```json\n{\"not\": \"a list\"\n```",
		"",
	} {
		groups := decodeGroups(reply)
		if groups == nil || len(groups) != 0 {
			t.Errorf("decodeGroups(%q) = %#v, want empty list", reply, groups)
		}
	}
}

func TestFormatRecords(t *testing.T) {
	records := []model.SourceRecord{
		{From: "a@x", Subject: "interview", Snippet: "next week", Link: "https://mail/1", Source: "career"},
		{From: "b@x", Subject: "rent", Snippet: "due soon", Link: "https://mail/2", Source: "personal"},
	}
	out := formatRecords(records)

	if !strings.Contains(out, "From: a@x") || !strings.Contains(out, "Link: https://mail/2") {
		t.Errorf("formatted records missing fields:\n%s", out)
	}
	if strings.Count(out, "Email:") != 2 {
		t.Errorf("expected 2 email blocks:\n%s", out)
	}
}
