// Package extract walks normalized text line by line and recovers an
// ordered sequence of workflow steps. Extraction is heuristic but total:
// text with no recognizable structure yields an empty step list, never an
// error.
package extract

import (
	"regexp"
	"strings"

	"github.com/rendis/deliverable/pkg/schema"
)

// Limits bounds label and substep sizes for renderability. The defaults
// are tuned for the diagram renderer's node width; override them through
// the public Options rather than here.
type Limits struct {
	MaxLabelLen int
	MaxSubsteps int
}

// DefaultLimits matches the original renderer's tuning.
var DefaultLimits = Limits{MaxLabelLen: 50, MaxSubsteps: 5}

// Step is one raw extracted step: a cleaned label plus any sub-bullet
// lines that immediately followed it.
type Step struct {
	Label    string
	Substeps []string
}

var (
	enumeratorRe = regexp.MustCompile(`^\s*\d+[.)]\s+`)
	bulletRe     = regexp.MustCompile(`^\s*[-•*]\s+`)
	subBulletRe  = regexp.MustCompile(`^\s+[-•*]\s+`)
	stepMarkerRe = regexp.MustCompile(`(?i)^\s*(step|phase|stage|task)\s*\d*\s*[:.]\s*`)
	sentinelRe   = regexp.MustCompile(`(?i)^\s*(start|begin|review|approve|complete|end|finish)\b`)
)

// isStepLine reports whether a line opens a new step record.
func isStepLine(line string) bool {
	if subBulletRe.MatchString(line) {
		return false
	}
	return enumeratorRe.MatchString(line) ||
		bulletRe.MatchString(line) ||
		stepMarkerRe.MatchString(line) ||
		sentinelRe.MatchString(line)
}

// cleanLabel strips list markers and step/phase prefixes from a line.
func cleanLabel(line string) string {
	line = strings.TrimSpace(line)
	line = stepMarkerRe.ReplaceAllString(line, "")
	line = enumeratorRe.ReplaceAllString(line, "")
	line = bulletRe.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// truncate bounds a label to max runes, appending an ellipsis marker.
// This is a deliberate rendering-driven policy: the full text is not
// preserved anywhere else.
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Steps extracts the ordered step records from normalized text. Indented
// sub-bullets attach to the preceding step, capped at lim.MaxSubsteps.
func Steps(text string, lim Limits) []Step {
	var steps []Step
	for _, rawLine := range strings.Split(text, "\n") {
		if strings.TrimSpace(rawLine) == "" {
			continue
		}

		if subBulletRe.MatchString(rawLine) && len(steps) > 0 {
			last := &steps[len(steps)-1]
			if len(last.Substeps) < lim.MaxSubsteps {
				sub := cleanLabel(rawLine)
				if sub != "" {
					last.Substeps = append(last.Substeps, truncate(sub, lim.MaxLabelLen))
				}
			}
			continue
		}

		if !isStepLine(rawLine) {
			continue
		}

		label := cleanLabel(rawLine)
		if label == "" {
			continue
		}
		steps = append(steps, Step{Label: truncate(label, lim.MaxLabelLen)})
	}
	return steps
}

var decisionCueRe = regexp.MustCompile(`(?i)\b(decision|review|approve|check)`)

// Kind assigns a node kind to the step at position i of n extracted
// steps. Position rules take precedence over lexical cues: the first
// step anchors the graph entry, the last its exit.
func Kind(label string, i, n int) schema.NodeKind {
	switch {
	case i == 0:
		return schema.NodeKindStart
	case i == n-1:
		return schema.NodeKindEnd
	case decisionCueRe.MatchString(label):
		return schema.NodeKindDecision
	default:
		return schema.NodeKindStep
	}
}
