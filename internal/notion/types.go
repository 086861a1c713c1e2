package notion

import "encoding/json"

// RichText is one segment of Notion's structured text representation:
// plain text, optionally annotated with a link.
type RichText struct {
	Text TextContent `json:"text"`
}

// TextContent is the content/link pair inside a rich text segment.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link wraps a URL for a link-annotated segment.
type Link struct {
	URL string `json:"url"`
}

// SelectOption names a value of a select (categorical) property.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is the start of a date property. Notion accepts both plain
// dates ("2024-01-01") and date-times here.
type DateValue struct {
	Start string `json:"start"`
}

// PropertyValue is a typed value wrapper for a page property. Exactly
// one field is set, matching the remote field's type.
type PropertyValue struct {
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
	Checkbox *bool         `json:"checkbox,omitempty"`
}

// Properties maps remote field names to their values.
type Properties map[string]PropertyValue

// Title builds a title property with a single plain segment.
func Title(s string) PropertyValue {
	return PropertyValue{Title: []RichText{Plain(s)}}
}

// Text builds a rich_text property from the given segments.
func Text(segments ...RichText) PropertyValue {
	return PropertyValue{RichText: segments}
}

// Select builds a select property.
func Select(name string) PropertyValue {
	return PropertyValue{Select: &SelectOption{Name: name}}
}

// Date builds a date property.
func Date(start string) PropertyValue {
	return PropertyValue{Date: &DateValue{Start: start}}
}

// Checkbox builds a checkbox property.
func Checkbox(v bool) PropertyValue {
	return PropertyValue{Checkbox: &v}
}

// Plain returns an unannotated rich text segment.
func Plain(content string) RichText {
	return RichText{Text: TextContent{Content: content}}
}

// LinkText returns a link-annotated rich text segment.
func LinkText(content, url string) RichText {
	return RichText{Text: TextContent{Content: content, Link: &Link{URL: url}}}
}

// Page is a remote page as returned by the API. Only the identifier is
// interpreted locally; properties stay opaque.
type Page struct {
	ID         string          `json:"id"`
	Properties json.RawMessage `json:"properties"`
}

// Filter is a query filter document in the remote API's own shape.
type Filter map[string]any
