// Package deliverable extracts structured deliverables (workflow graphs
// and checklists) from free-form LLM response text. Parsing is rule-based
// and total: every string input yields a renderable result, degrading to
// documented fallback shapes instead of failing.
package deliverable

import (
	"context"
	"log/slog"
	"os"

	"github.com/rendis/deliverable/internal/checklist"
	"github.com/rendis/deliverable/internal/classify"
	"github.com/rendis/deliverable/internal/extract"
	"github.com/rendis/deliverable/internal/graph"
	"github.com/rendis/deliverable/internal/logging"
	"github.com/rendis/deliverable/internal/normalize"
	"github.com/rendis/deliverable/internal/structured"
	"github.com/rendis/deliverable/pkg/schema"
)

// ModeWorkflow is the chat-mode sentinel that gates workflow extraction.
// ParseVisualization returns nil for any other mode; the mode itself is
// owned by the chat collaborator, not this package.
const ModeWorkflow = "workflow"

// Options exposes the renderability caps as configuration. The defaults
// are tuned for a specific diagram renderer's node width and should be
// kept for visual parity with existing renderers.
type Options struct {
	MaxLabelLen         int
	MaxSubsteps         int
	MaxParallelBranches int
}

// DefaultOptions returns the original tuning.
func DefaultOptions() Options {
	return Options{
		MaxLabelLen:         extract.DefaultLimits.MaxLabelLen,
		MaxSubsteps:         extract.DefaultLimits.MaxSubsteps,
		MaxParallelBranches: graph.DefaultMaxFanOut,
	}
}

// Parser is the public entry point. It is immutable after construction
// and safe for unbounded concurrent use: every parse call is an
// independent pure function over its input.
type Parser struct {
	opts       Options
	classifier *classify.Classifier
	prober     *structured.Prober
	logger     *slog.Logger
}

// NewParser builds a Parser. A nil logger falls back to a text handler on
// stderr.
func NewParser(opts Options, logger *slog.Logger) *Parser {
	if opts.MaxLabelLen <= 0 {
		opts.MaxLabelLen = extract.DefaultLimits.MaxLabelLen
	}
	if opts.MaxSubsteps <= 0 {
		opts.MaxSubsteps = extract.DefaultLimits.MaxSubsteps
	}
	if opts.MaxParallelBranches <= 0 {
		opts.MaxParallelBranches = graph.DefaultMaxFanOut
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Parser{
		opts:       opts,
		classifier: classify.New(),
		prober:     structured.Default(),
		logger:     logger,
	}
}

// ParseWorkflow converts raw response text into a workflow graph. It
// never fails: text with no recognizable steps yields the minimal
// {start, end} chain. A structured JSON graph embedded in the text takes
// the fast path and bypasses heuristic extraction.
func (p *Parser) ParseWorkflow(ctx context.Context, rawText string) schema.ParsedWorkflow {
	text := normalize.Text(rawText)

	if in, ok := p.prober.Probe(ctx, text); ok {
		wf := fromStructured(in)
		p.logger.DebugContext(ctx, "parsed structured workflow",
			slog.Int("nodes", len(wf.Nodes)), slog.Int("edges", len(wf.Edges)))
		return wf
	}

	tag := p.classifier.Classify(text)
	steps := extract.Steps(text, extract.Limits{
		MaxLabelLen: p.opts.MaxLabelLen,
		MaxSubsteps: p.opts.MaxSubsteps,
	})
	wf := graph.Assemble(steps, tag, p.opts.MaxParallelBranches)

	p.logger.DebugContext(ctx, "parsed workflow from text",
		slog.String("format", string(tag)),
		slog.Int("steps", len(steps)),
		slog.Int("nodes", len(wf.Nodes)),
		slog.Int("edges", len(wf.Edges)))
	return wf
}

// ParseChecklist converts raw response text into checklist sections. The
// result always contains at least one section.
func (p *Parser) ParseChecklist(ctx context.Context, rawText string) []schema.ChecklistSection {
	// Heading markers survive normalization here: they are the section
	// boundaries.
	text := normalize.KeepHeadings(rawText)
	sections := checklist.Parse(text)

	p.logger.DebugContext(ctx, "parsed checklist",
		slog.Int("sections", len(sections)))
	return sections
}

// ParseVisualization wraps the workflow path in the visualization
// envelope shared with non-workflow chart types. It returns nil unless
// mode is ModeWorkflow; skipping is the documented gate, not an error.
func (p *Parser) ParseVisualization(ctx context.Context, mode, title, rawText string) *schema.VisualizationData {
	if mode != ModeWorkflow {
		return nil
	}
	ctx = logging.WithMode(ctx, mode)
	wf := p.ParseWorkflow(ctx, rawText)
	if title == "" {
		title = "Workflow"
	}
	return &schema.VisualizationData{
		Type:  "workflow",
		Title: title,
		Data:  []any{},
		Config: schema.VisualizationConfig{
			Nodes:  wf.Nodes,
			Edges:  wf.Edges,
			Layout: wf.Layout,
		},
	}
}

// fromStructured adapts a validated structured input to the public result
// shape, enforcing the exit invariants: an end-typed node always exists
// (appended when the document declares none), and every non-end node
// without an outgoing edge converges on it. The schema leaves edges
// optional, so a valid document can still arrive with dangling nodes.
func fromStructured(in *structured.Input) schema.ParsedWorkflow {
	nodes := in.Nodes
	edges := in.Edges

	endID := ""
	for _, n := range nodes {
		if n.Kind == schema.NodeKindEnd {
			endID = n.ID
			break
		}
	}
	if endID == "" {
		endID = "end"
		for hasNode(nodes, endID) {
			endID += "-x"
		}
		nodes = append(nodes, schema.WorkflowNode{ID: endID, Kind: schema.NodeKindEnd, Label: "End"})
	}

	outgoing := make(map[string]bool, len(nodes))
	for _, e := range edges {
		outgoing[e.Source] = true
	}
	for _, n := range nodes {
		if n.Kind == schema.NodeKindEnd || outgoing[n.ID] {
			continue
		}
		edges = append(edges, schema.WorkflowEdge{
			ID:     "edge-end-" + n.ID,
			Source: n.ID,
			Target: endID,
		})
	}

	return schema.ParsedWorkflow{Nodes: nodes, Edges: edges, Layout: in.Layout}
}

func hasNode(nodes []schema.WorkflowNode, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
