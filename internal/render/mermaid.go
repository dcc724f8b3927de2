// Package render emits text-format renderings of parsed deliverables for
// debugging and CLI output. Graphical rendering belongs to downstream
// collaborators.
package render

import (
	"fmt"
	"strings"

	"github.com/rendis/deliverable/pkg/schema"
)

// Mermaid renders a ParsedWorkflow as a Mermaid flowchart string.
func Mermaid(wf schema.ParsedWorkflow, title string) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", title))
	}

	for _, node := range wf.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range wf.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.Source), label, mermaidSafeID(edge.Target)))
	}

	return b.String()
}

// MermaidChecklist renders checklist sections as a Mermaid mindmap-style
// task list block.
func MermaidChecklist(sections []schema.ChecklistSection) string {
	var b strings.Builder

	for _, sec := range sections {
		b.WriteString(fmt.Sprintf("## %s\n", sec.Title))
		for _, item := range sec.Items {
			mark := " "
			if item.Completed {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("- [%s] %s", mark, item.Text))
			if item.Priority != schema.PriorityMedium {
				b.WriteString(fmt.Sprintf(" (%s priority)", item.Priority))
			}
			if item.Deadline != "" {
				b.WriteString(fmt.Sprintf(" due: %s", item.Deadline))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node schema.WorkflowNode) string {
	id := mermaidSafeID(node.ID)
	label := node.Label

	switch node.Kind {
	case schema.NodeKindDecision:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.NodeKindStart, schema.NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}
