// Package normalize prepares raw LLM response text for structural extraction.
// Normalization is total: any string in, a (possibly empty) string out.
package normalize

import (
	"regexp"
	"strings"
)

var (
	deliverableRe = regexp.MustCompile(`(?s)<DELIVERABLE>(.*?)</DELIVERABLE>`)
	codeFenceRe   = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?.*?```")
	boldRe        = regexp.MustCompile(`\*\*([^*\n]*)\*\*`)
	emphasisRe    = regexp.MustCompile(`\*([^*\n]+)\*`)
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
)

// Payload isolates the deliverable body from surrounding conversational
// prose. The wrapper check runs on the original text, before any marker
// stripping, so fenced wrappers are still honored.
func Payload(raw string) string {
	if m := deliverableRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// Clean strips markdown noise that carries no structure: fenced code
// blocks, bold/italic emphasis markers, and heading hashes.
func Clean(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Text runs the full normalization pipeline: deliverable isolation on the
// original text, then markdown cleanup.
func Text(raw string) string {
	return Clean(Payload(raw))
}

// KeepHeadings is like Text but preserves heading markers, which the
// checklist parser needs to recognize section boundaries.
func KeepHeadings(raw string) string {
	text := Payload(raw)
	text = codeFenceRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
