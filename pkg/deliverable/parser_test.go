package deliverable

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deliverable/pkg/schema"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewParser(DefaultOptions(), logger)
}

// assertWorkflowInvariants checks the public contract: defined entry and
// exit, referenced edge endpoints, and no orphan non-terminal nodes.
func assertWorkflowInvariants(t *testing.T, wf schema.ParsedWorkflow) {
	t.Helper()
	require.GreaterOrEqual(t, len(wf.Nodes), 2)

	ids := make(map[string]schema.NodeKind, len(wf.Nodes))
	hasEnd := false
	for _, n := range wf.Nodes {
		ids[n.ID] = n.Kind
		if n.Kind == schema.NodeKindEnd {
			hasEnd = true
		}
	}
	assert.True(t, hasEnd, "workflow must contain an end node")

	outgoing := make(map[string]bool)
	for _, e := range wf.Edges {
		_, ok := ids[e.Source]
		require.True(t, ok, "edge %s references unknown source %s", e.ID, e.Source)
		_, ok = ids[e.Target]
		require.True(t, ok, "edge %s references unknown target %s", e.ID, e.Target)
		outgoing[e.Source] = true
	}
	for _, n := range wf.Nodes {
		if n.Kind != schema.NodeKindEnd {
			assert.True(t, outgoing[n.ID], "node %s has no outgoing edge", n.ID)
		}
	}
}

func TestParseWorkflowNumberedList(t *testing.T) {
	p := newTestParser(t)
	wf := p.ParseWorkflow(context.Background(), "1. Collect data\n2. Clean data\n3. Train model\n4. Evaluate")

	require.Len(t, wf.Nodes, 4)
	assert.Equal(t, "sequential", wf.Layout)
	assert.Equal(t, "Collect data", wf.Nodes[0].Label)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowDeliverableWrapper(t *testing.T) {
	p := newTestParser(t)
	raw := "Sure! Here's the plan.\n<DELIVERABLE>\n1. Draft\n2. Edit\n3. Publish\n</DELIVERABLE>\nHope that helps."
	wf := p.ParseWorkflow(context.Background(), raw)

	require.Len(t, wf.Nodes, 3)
	assert.Equal(t, "Draft", wf.Nodes[0].Label)
}

func TestParseWorkflowDegenerateInput(t *testing.T) {
	p := newTestParser(t)
	for _, input := range []string{"", "   \n\t "} {
		wf := p.ParseWorkflow(context.Background(), input)
		require.Len(t, wf.Nodes, 2, "input %q", input)
		assert.Equal(t, schema.NodeKindStart, wf.Nodes[0].Kind)
		assert.Equal(t, schema.NodeKindEnd, wf.Nodes[1].Kind)
		require.Len(t, wf.Edges, 1)
	}
}

func TestParseWorkflowProseOnly(t *testing.T) {
	p := newTestParser(t)
	wf := p.ParseWorkflow(context.Background(), "I think you should consider a phased migration, but it depends on your team.")
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowDecisionTree(t *testing.T) {
	p := newTestParser(t)
	text := "1. Receive application\n2. Check eligibility decision: yes or no\n3. Send response"
	wf := p.ParseWorkflow(context.Background(), text)

	assert.Equal(t, "tree", wf.Layout)
	var labels []string
	for _, e := range wf.Edges {
		if e.Label != "" {
			labels = append(labels, e.Label)
		}
	}
	assert.ElementsMatch(t, []string{"Yes", "No"}, labels)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowDecisionPrecedesParallel(t *testing.T) {
	p := newTestParser(t)
	text := "These parallel steps lead to a decision: yes continues, no aborts.\n1. A\n2. Decision gate\n3. C"
	wf := p.ParseWorkflow(context.Background(), text)
	assert.Equal(t, "tree", wf.Layout)
}

func TestParseWorkflowParallel(t *testing.T) {
	p := newTestParser(t)
	text := "Run these in parallel:\n1. Kick off\n2. Track A\n3. Track B\n4. Merge results"
	wf := p.ParseWorkflow(context.Background(), text)
	assert.Equal(t, "parallel", wf.Layout)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowStructuredFastPath(t *testing.T) {
	p := newTestParser(t)
	text := `{"nodes": [{"id": "a", "type": "start", "label": "Go"}, {"id": "b", "type": "end", "label": "Done"}], "edges": [{"id": "e", "source": "a", "target": "b"}], "layout": "sequential"}`
	wf := p.ParseWorkflow(context.Background(), text)

	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "Go", wf.Nodes[0].Label)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowMalformedJSONFallsThrough(t *testing.T) {
	p := newTestParser(t)
	text := "{broken json\n1. Real step one\n2. Real step two"
	wf := p.ParseWorkflow(context.Background(), text)

	// The failed fast path is invisible: text extraction still runs.
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "Real step one", wf.Nodes[0].Label)
}

func TestParseWorkflowStructuredDanglingNodeConvergesOnEnd(t *testing.T) {
	p := newTestParser(t)
	// Edges are optional in structured input, so a document can declare an
	// end node and still leave another node disconnected.
	text := `{"nodes": [{"id": "a", "type": "step"}, {"id": "b", "type": "end"}]}`
	wf := p.ParseWorkflow(context.Background(), text)

	require.Len(t, wf.Nodes, 2)
	require.Len(t, wf.Edges, 1)
	assert.Equal(t, "a", wf.Edges[0].Source)
	assert.Equal(t, "b", wf.Edges[0].Target)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowStructuredWithoutEndGetsOne(t *testing.T) {
	p := newTestParser(t)
	text := `{"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"source": "a", "target": "b"}]}`
	wf := p.ParseWorkflow(context.Background(), text)
	assertWorkflowInvariants(t, wf)
}

func TestParseWorkflowDeterministic(t *testing.T) {
	p := newTestParser(t)
	text := "<DELIVERABLE>1. One\n2. Decision check yes/no\n3. Three</DELIVERABLE>"
	a := p.ParseWorkflow(context.Background(), text)
	b := p.ParseWorkflow(context.Background(), text)
	assert.Equal(t, a, b)
}

func TestParseWorkflowLabelCapOption(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewParser(Options{MaxLabelLen: 10}, logger)
	wf := p.ParseWorkflow(context.Background(), "1. "+strings.Repeat("x", 40))
	assert.Equal(t, strings.Repeat("x", 10)+"...", wf.Nodes[0].Label)
}

func TestParseChecklistBasics(t *testing.T) {
	p := newTestParser(t)
	text := "## Finance\n- [ ] File taxes (high priority) due: April 15\n- [x] Pay rent"
	sections := p.ParseChecklist(context.Background(), text)

	require.Len(t, sections, 1)
	require.Len(t, sections[0].Items, 2)
	item := sections[0].Items[0]
	assert.Equal(t, "File taxes", item.Text)
	assert.Equal(t, schema.PriorityHigh, item.Priority)
	assert.Equal(t, "April 15", item.Deadline)
	assert.False(t, item.Completed)
	assert.True(t, sections[0].Items[1].Completed)
}

func TestParseChecklistAlwaysReturnsSection(t *testing.T) {
	p := newTestParser(t)
	for _, input := range []string{"", "nothing here", "```\n- [ ] inside fence\n```"} {
		sections := p.ParseChecklist(context.Background(), input)
		require.NotEmpty(t, sections, "input %q", input)
	}
}

func TestParseChecklistPriorityDomain(t *testing.T) {
	p := newTestParser(t)
	text := "- [ ] A (high priority)\n- [ ] B (low priority)\n- [ ] C (weird priority)\n- [ ] D"
	sections := p.ParseChecklist(context.Background(), text)
	for _, sec := range sections {
		for _, item := range sec.Items {
			assert.Contains(t, []schema.Priority{
				schema.PriorityHigh, schema.PriorityMedium, schema.PriorityLow,
			}, item.Priority)
		}
	}
}

func TestParseVisualizationModeGate(t *testing.T) {
	p := newTestParser(t)

	assert.Nil(t, p.ParseVisualization(context.Background(), "chat", "t", "1. A\n2. B"))
	assert.Nil(t, p.ParseVisualization(context.Background(), "", "t", "1. A\n2. B"))

	viz := p.ParseVisualization(context.Background(), ModeWorkflow, "My Flow", "1. A\n2. B")
	require.NotNil(t, viz)
	assert.Equal(t, "workflow", viz.Type)
	assert.Equal(t, "My Flow", viz.Title)
	assert.NotNil(t, viz.Data)
	assert.Empty(t, viz.Data)
	assert.NotEmpty(t, viz.Config.Nodes)
	assert.NotEmpty(t, viz.Config.Layout)
}

func TestParseVisualizationDefaultTitle(t *testing.T) {
	p := newTestParser(t)
	viz := p.ParseVisualization(context.Background(), ModeWorkflow, "", "1. A")
	require.NotNil(t, viz)
	assert.Equal(t, "Workflow", viz.Title)
}
