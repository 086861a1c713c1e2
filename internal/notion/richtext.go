package notion

import "regexp"

// linkPattern matches a single markdown-style link: an anchor without
// "]" followed by a URL without ")".
var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// EncodeRichText converts a constrained markdown subset (plain text plus
// [anchor](url) links) into ordered rich text segments. Literal spans
// between links become plain segments; empty spans are skipped, so the
// output never contains an empty segment. Text bytes are preserved
// exactly; nothing is escaped or reordered. Input with no links yields a
// single plain segment, and empty input yields no segments.
func EncodeRichText(text string) []RichText {
	var segments []RichText

	idx := 0
	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > idx {
			segments = append(segments, Plain(text[idx:m[0]]))
		}
		anchor := text[m[2]:m[3]]
		url := text[m[4]:m[5]]
		segments = append(segments, LinkText(anchor, url))
		idx = m[1]
	}
	if idx < len(text) {
		segments = append(segments, Plain(text[idx:]))
	}

	return segments
}
