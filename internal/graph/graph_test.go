package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deliverable/internal/extract"
	"github.com/rendis/deliverable/pkg/schema"
)

func steps(labels ...string) []extract.Step {
	out := make([]extract.Step, 0, len(labels))
	for _, l := range labels {
		out = append(out, extract.Step{Label: l})
	}
	return out
}

// assertGraphInvariants checks the structural contract every strategy
// must satisfy: referenced endpoints exist, edge IDs are unique, and
// every non-end node has an outgoing edge.
func assertGraphInvariants(t *testing.T, wf schema.ParsedWorkflow) {
	t.Helper()

	ids := make(map[string]schema.NodeKind, len(wf.Nodes))
	for _, n := range wf.Nodes {
		_, dup := ids[n.ID]
		require.False(t, dup, "duplicate node id %s", n.ID)
		ids[n.ID] = n.Kind
	}

	edgeIDs := make(map[string]bool, len(wf.Edges))
	outgoing := make(map[string]bool, len(wf.Nodes))
	for _, e := range wf.Edges {
		require.False(t, edgeIDs[e.ID], "duplicate edge id %s", e.ID)
		edgeIDs[e.ID] = true
		_, ok := ids[e.Source]
		require.True(t, ok, "edge %s has unknown source %s", e.ID, e.Source)
		_, ok = ids[e.Target]
		require.True(t, ok, "edge %s has unknown target %s", e.ID, e.Target)
		outgoing[e.Source] = true
	}

	for _, n := range wf.Nodes {
		if n.Kind == schema.NodeKindEnd {
			continue
		}
		assert.True(t, outgoing[n.ID], "non-end node %s has no outgoing edge", n.ID)
	}
}

func TestAssembleLinearChain(t *testing.T) {
	wf := Assemble(steps("Plan", "Build", "Test", "Deploy"), schema.FormatLinear, DefaultMaxFanOut)

	require.Len(t, wf.Nodes, 4)
	require.Len(t, wf.Edges, 3)
	assert.Equal(t, "sequential", wf.Layout)
	assert.Equal(t, schema.NodeKindStart, wf.Nodes[0].Kind)
	assert.Equal(t, schema.NodeKindEnd, wf.Nodes[3].Kind)
	for i, e := range wf.Edges {
		assert.Equal(t, wf.Nodes[i].ID, e.Source)
		assert.Equal(t, wf.Nodes[i+1].ID, e.Target)
	}
	assertGraphInvariants(t, wf)
}

func TestAssembleDegenerateInput(t *testing.T) {
	wf := Assemble(nil, schema.FormatLinear, DefaultMaxFanOut)

	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, schema.NodeKindStart, wf.Nodes[0].Kind)
	assert.Equal(t, schema.NodeKindEnd, wf.Nodes[1].Kind)
	require.Len(t, wf.Edges, 1)
	assert.Equal(t, wf.Nodes[0].ID, wf.Edges[0].Source)
	assert.Equal(t, wf.Nodes[1].ID, wf.Edges[0].Target)
	assertGraphInvariants(t, wf)
}

func TestAssembleSingleStepGetsSynthesizedEnd(t *testing.T) {
	wf := Assemble(steps("Only step"), schema.FormatLinear, DefaultMaxFanOut)

	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, schema.NodeKindStart, wf.Nodes[0].Kind)
	assert.Equal(t, "Only step", wf.Nodes[0].Label)
	assert.Equal(t, schema.NodeKindEnd, wf.Nodes[1].Kind)
	require.Len(t, wf.Edges, 1)
	assertGraphInvariants(t, wf)
}

func TestAssembleDecisionTree(t *testing.T) {
	wf := Assemble(steps("Receive request", "Review the request", "Close out"), schema.FormatDecision, DefaultMaxFanOut)
	assert.Equal(t, "tree", wf.Layout)

	var decision *schema.WorkflowNode
	for i := range wf.Nodes {
		if wf.Nodes[i].Kind == schema.NodeKindDecision {
			decision = &wf.Nodes[i]
		}
	}
	require.NotNil(t, decision)

	// Exactly two labeled edges out of the decision node, to two distinct
	// synthesized nodes.
	var labels []string
	targets := make(map[string]bool)
	for _, e := range wf.Edges {
		if e.Source == decision.ID && e.Label != "" {
			labels = append(labels, e.Label)
			targets[e.Target] = true
		}
	}
	assert.ElementsMatch(t, []string{"Yes", "No"}, labels)
	assert.Len(t, targets, 2)

	// Synthesized outcome nodes are present and typed step.
	var yes, no *schema.WorkflowNode
	for i := range wf.Nodes {
		switch wf.Nodes[i].ID {
		case decision.ID + "-yes":
			yes = &wf.Nodes[i]
		case decision.ID + "-no":
			no = &wf.Nodes[i]
		}
	}
	require.NotNil(t, yes)
	require.NotNil(t, no)
	assert.Equal(t, schema.NodeKindStep, yes.Kind)
	assert.Equal(t, schema.NodeKindStep, no.Kind)

	// The sequential chain does not double-link through outcome nodes:
	// no unlabeled edge leaves the decision node.
	for _, e := range wf.Edges {
		if e.Source == decision.ID {
			assert.NotEmpty(t, e.Label)
		}
	}
	assertGraphInvariants(t, wf)
}

func TestAssembleParallelFanOutFanIn(t *testing.T) {
	wf := Assemble(steps("Kick off", "Track A", "Track B", "Track C", "Wrap up"), schema.FormatParallel, DefaultMaxFanOut)
	assert.Equal(t, "parallel", wf.Layout)

	start := wf.Nodes[0]
	end := wf.Nodes[len(wf.Nodes)-1]

	var fanOut, fanIn int
	for _, e := range wf.Edges {
		if e.Source == start.ID {
			fanOut++
		}
		if e.Target == end.ID {
			fanIn++
		}
	}
	assert.Equal(t, 3, fanOut)
	assert.Equal(t, 3, fanIn)
	assertGraphInvariants(t, wf)
}

func TestAssembleParallelFanOutCap(t *testing.T) {
	wf := Assemble(steps("Start", "A", "B", "C", "D", "E", "End"), schema.FormatParallel, DefaultMaxFanOut)

	start := wf.Nodes[0]
	var fanOut int
	for _, e := range wf.Edges {
		if e.Source == start.ID {
			fanOut++
		}
	}
	assert.Equal(t, DefaultMaxFanOut, fanOut)
	// Intermediates beyond the fan-out cap still converge on the end
	// node, so none are left dangling.
	assertGraphInvariants(t, wf)
}

func TestAssembleParallelTwoNodes(t *testing.T) {
	wf := Assemble(steps("Begin", "Finish"), schema.FormatParallel, DefaultMaxFanOut)
	require.Len(t, wf.Nodes, 2)
	require.Len(t, wf.Edges, 1)
	assertGraphInvariants(t, wf)
}

func TestAssembleApprovalSharesLinearTopology(t *testing.T) {
	s := steps("Draft", "Review draft", "Publish")
	approval := Assemble(s, schema.FormatApproval, DefaultMaxFanOut)
	linear := Assemble(s, schema.FormatLinear, DefaultMaxFanOut)

	assert.Equal(t, "approval", approval.Layout)
	assert.Equal(t, linear.Nodes, approval.Nodes)
	assert.Equal(t, linear.Edges, approval.Edges)
}

func TestAssembleDeterministic(t *testing.T) {
	s := steps("One", "Check two", "Three")
	a := Assemble(s, schema.FormatDecision, DefaultMaxFanOut)
	b := Assemble(s, schema.FormatDecision, DefaultMaxFanOut)
	assert.Equal(t, a, b)
}
