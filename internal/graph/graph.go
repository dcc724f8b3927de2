// Package graph turns an extracted step sequence into a renderable
// workflow graph. Edge synthesis is strategy-driven by the format tag;
// every strategy produces an acyclic graph whose edges only reference
// node IDs present in the result.
package graph

import (
	"fmt"

	"github.com/rendis/deliverable/internal/extract"
	"github.com/rendis/deliverable/pkg/schema"
)

// DefaultMaxFanOut bounds how many branches the parallel strategy draws
// from the start node. Tuned for the diagram renderer; see Options on
// the facade for overriding it.
const DefaultMaxFanOut = 3

// Assemble builds the complete ParsedWorkflow for a step sequence. It
// guarantees defined entry and exit points: a start node always opens the
// graph and an end node always closes it, synthesized when extraction
// found fewer than two steps.
func Assemble(steps []extract.Step, tag schema.FormatTag, maxFanOut int) schema.ParsedWorkflow {
	nodes := buildNodes(steps)
	edges := synthesize(nodes, tag, maxFanOut)

	// Decision strategy appends synthesized outcome nodes.
	if tag == schema.FormatDecision {
		nodes, edges = expandDecisions(nodes, edges)
	}

	return schema.ParsedWorkflow{
		Nodes:  nodes,
		Edges:  edges,
		Layout: tag.Layout(),
	}
}

// buildNodes maps steps to typed nodes and enforces the entry/exit
// invariant. Zero steps yield the minimal {start, end} pair; a single
// step becomes the start node and gets a synthesized end appended.
func buildNodes(steps []extract.Step) []schema.WorkflowNode {
	if len(steps) == 0 {
		return []schema.WorkflowNode{
			{ID: "start", Kind: schema.NodeKindStart, Label: "Start"},
			{ID: "end", Kind: schema.NodeKindEnd, Label: "End"},
		}
	}

	nodes := make([]schema.WorkflowNode, 0, len(steps)+1)
	for i, s := range steps {
		nodes = append(nodes, schema.WorkflowNode{
			ID:       fmt.Sprintf("step-%d", i),
			Kind:     extract.Kind(s.Label, i, len(steps)),
			Label:    s.Label,
			Substeps: s.Substeps,
		})
	}
	if nodes[len(nodes)-1].Kind != schema.NodeKindEnd {
		nodes = append(nodes, schema.WorkflowNode{ID: "end", Kind: schema.NodeKindEnd, Label: "End"})
	}
	return nodes
}

// synthesize dispatches on the format tag. Approval shares the linear
// topology: its gates are already expressed by decision-typed nodes, the
// distinction for the renderer travels in the layout tag.
func synthesize(nodes []schema.WorkflowNode, tag schema.FormatTag, maxFanOut int) []schema.WorkflowEdge {
	switch tag {
	case schema.FormatParallel:
		return parallelEdges(nodes, maxFanOut)
	case schema.FormatDecision:
		return decisionChain(nodes)
	default:
		return chainEdges(nodes)
	}
}

// chainEdges connects each node to its immediate successor.
func chainEdges(nodes []schema.WorkflowNode) []schema.WorkflowEdge {
	edges := make([]schema.WorkflowEdge, 0, len(nodes))
	for i := 0; i+1 < len(nodes); i++ {
		edges = append(edges, schema.WorkflowEdge{
			ID:     fmt.Sprintf("edge-%d", len(edges)),
			Source: nodes[i].ID,
			Target: nodes[i+1].ID,
		})
	}
	return edges
}

// decisionChain links non-decision nodes sequentially. Decision nodes get
// their outgoing edges from expandDecisions, which routes them through
// synthesized Yes/No outcome nodes instead of the plain chain.
func decisionChain(nodes []schema.WorkflowNode) []schema.WorkflowEdge {
	var edges []schema.WorkflowEdge
	for i := 0; i+1 < len(nodes); i++ {
		if nodes[i].Kind == schema.NodeKindDecision {
			continue
		}
		edges = append(edges, schema.WorkflowEdge{
			ID:     fmt.Sprintf("edge-%d", len(edges)),
			Source: nodes[i].ID,
			Target: nodes[i+1].ID,
		})
	}
	return edges
}

// expandDecisions appends two outcome nodes per decision node and the
// labeled branch edges to them. Each outcome node converges on the
// decision's successor so no non-terminal node is left without an
// outgoing edge.
func expandDecisions(nodes []schema.WorkflowNode, edges []schema.WorkflowEdge) ([]schema.WorkflowNode, []schema.WorkflowEdge) {
	outNodes := nodes
	for i, n := range nodes {
		if n.Kind != schema.NodeKindDecision {
			continue
		}
		yesID := n.ID + "-yes"
		noID := n.ID + "-no"
		outNodes = append(outNodes,
			schema.WorkflowNode{ID: yesID, Kind: schema.NodeKindStep, Label: "Yes"},
			schema.WorkflowNode{ID: noID, Kind: schema.NodeKindStep, Label: "No"},
		)
		edges = append(edges,
			schema.WorkflowEdge{ID: fmt.Sprintf("edge-%s-yes", n.ID), Source: n.ID, Target: yesID, Label: "Yes"},
			schema.WorkflowEdge{ID: fmt.Sprintf("edge-%s-no", n.ID), Source: n.ID, Target: noID, Label: "No"},
		)
		if i+1 < len(nodes) {
			next := nodes[i+1].ID
			edges = append(edges,
				schema.WorkflowEdge{ID: fmt.Sprintf("edge-%s-yes-join", n.ID), Source: yesID, Target: next},
				schema.WorkflowEdge{ID: fmt.Sprintf("edge-%s-no-join", n.ID), Source: noID, Target: next},
			)
		}
	}
	return outNodes, edges
}

// parallelEdges fans the start node out to the first maxFanOut
// intermediate nodes and converges every intermediate back into the end
// node. With no intermediates it degrades to a single start→end edge.
func parallelEdges(nodes []schema.WorkflowNode, maxFanOut int) []schema.WorkflowEdge {
	if maxFanOut <= 0 {
		maxFanOut = DefaultMaxFanOut
	}
	if len(nodes) < 2 {
		return nil
	}

	start := nodes[0]
	end := nodes[len(nodes)-1]
	mid := nodes[1 : len(nodes)-1]

	var edges []schema.WorkflowEdge
	if len(mid) == 0 {
		return append(edges, schema.WorkflowEdge{
			ID: "edge-0", Source: start.ID, Target: end.ID,
		})
	}

	for i, n := range mid {
		if i >= maxFanOut {
			break
		}
		edges = append(edges, schema.WorkflowEdge{
			ID:     fmt.Sprintf("edge-%d", len(edges)),
			Source: start.ID,
			Target: n.ID,
		})
	}
	for _, n := range mid {
		edges = append(edges, schema.WorkflowEdge{
			ID:     fmt.Sprintf("edge-%d", len(edges)),
			Source: n.ID,
			Target: end.ID,
		})
	}
	return edges
}
