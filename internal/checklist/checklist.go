// Package checklist parses checklist-shaped text into sections of typed
// items. The line walk is an explicit two-state machine with the section
// accumulator threaded through, so each transition is a pure function of
// (state, line).
package checklist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rendis/deliverable/pkg/schema"
)

// DefaultSectionTitle names the fallback section used when the text
// declares no headers, and the single section returned for text with no
// recognizable items at all. Renderers never receive a structurally
// empty result.
const DefaultSectionTitle = "Checklist"

var (
	sectionRe  = regexp.MustCompile(`^#{2,3}\s+(.+)$`)
	checkboxRe = regexp.MustCompile(`^[-*]\s*\[([xX ])\]\s*(.+)$`)
	bulletRe   = regexp.MustCompile(`^[-*]\s+(.+)$`)
	priorityRe = regexp.MustCompile(`(?i)\(\s*(\w+)\s+priority\s*\)`)
	deadlineRe = regexp.MustCompile(`(?i)\b(?:by|due|deadline)\s*:\s*([^,]+)`)
)

// parseState is the scanner state: before any section header has been
// seen, or inside one.
type parseState int

const (
	beforeSection parseState = iota
	inSection
)

// accumulator carries the in-progress section and the flushed results.
type accumulator struct {
	state    parseState
	title    string
	items    []schema.ChecklistItem
	sections []schema.ChecklistSection
	nextID   int
}

// Parse converts normalized text (headings preserved) into checklist
// sections. It is total: any input yields at least one section.
func Parse(text string) []schema.ChecklistSection {
	acc := accumulator{title: DefaultSectionTitle}

	for _, rawLine := range strings.Split(text, "\n") {
		acc = step(acc, strings.TrimSpace(rawLine))
	}
	acc = flush(acc)

	if len(acc.sections) == 0 {
		return []schema.ChecklistSection{{Title: DefaultSectionTitle, Items: []schema.ChecklistItem{}}}
	}
	return acc.sections
}

// step is the single state-machine transition for one line.
func step(acc accumulator, line string) accumulator {
	if line == "" {
		return acc
	}

	if m := sectionRe.FindStringSubmatch(line); m != nil {
		acc = flush(acc)
		acc.state = inSection
		acc.title = strings.TrimSpace(m[1])
		return acc
	}

	if m := checkboxRe.FindStringSubmatch(line); m != nil {
		item := buildItem(acc.nextID, m[2], acc.title, true)
		item.Completed = strings.EqualFold(m[1], "x")
		acc.items = append(acc.items, item)
		acc.nextID++
		return acc
	}

	// Plain bullets are unchecked items. Deadline extraction is reserved
	// for checkbox items; priority annotations still apply.
	if m := bulletRe.FindStringSubmatch(line); m != nil && !strings.Contains(m[1], "[") {
		item := buildItem(acc.nextID, m[1], acc.title, false)
		acc.items = append(acc.items, item)
		acc.nextID++
		return acc
	}

	// Prose and commentary between items are dropped, never appended to
	// a previous item's text.
	return acc
}

// flush moves a non-empty in-progress section into the results.
func flush(acc accumulator) accumulator {
	if len(acc.items) > 0 {
		acc.sections = append(acc.sections, schema.ChecklistSection{
			Title: acc.title,
			Items: acc.items,
		})
		acc.items = nil
	}
	return acc
}

// buildItem extracts priority (and, for checkboxes, deadline) annotations
// from the item text and strips them from the display text.
func buildItem(id int, text, section string, withDeadline bool) schema.ChecklistItem {
	item := schema.ChecklistItem{
		ID:       fmt.Sprintf("item-%d", id),
		Priority: schema.PriorityMedium,
		Section:  section,
	}

	if m := priorityRe.FindStringSubmatch(text); m != nil {
		item.Priority = schema.ParsePriority(strings.ToLower(m[1]))
		text = priorityRe.ReplaceAllString(text, "")
	}
	if withDeadline {
		if m := deadlineRe.FindStringSubmatch(text); m != nil {
			item.Deadline = strings.TrimSpace(m[1])
			text = deadlineRe.ReplaceAllString(text, "")
		}
	}

	item.Text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ",-:"))
	return item
}
