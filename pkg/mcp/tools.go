package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/deliverable/internal/logging"
	"github.com/rendis/deliverable/internal/render"
	"github.com/rendis/deliverable/internal/store"
	"github.com/rendis/deliverable/pkg/schema"
)

// --- Tool definitions ---

func parseWorkflowTool() mcp.Tool {
	return mcp.NewTool("deliverable.parse_workflow",
		mcp.WithDescription("Parse free-form text into a directed workflow graph (nodes, edges, layout)"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The response text to parse")),
		mcp.WithString("title", mcp.Description("Title for the visualization envelope")),
		mcp.WithBoolean("envelope", mcp.Description("Wrap the result in a visualization envelope (default: false)")),
		mcp.WithBoolean("save", mcp.Description("Persist the parse result for later queries (default: false)")),
	)
}

func parseChecklistTool() mcp.Tool {
	return mcp.NewTool("deliverable.parse_checklist",
		mcp.WithDescription("Parse free-form text into checklist sections with priorities, deadlines, and completion state"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The response text to parse")),
		mcp.WithString("filter", mcp.Description("CEL filter over items, e.g. item.priority == 'high' && !item.completed")),
		mcp.WithBoolean("save", mcp.Description("Persist the parse result for later queries (default: false)")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("deliverable.render",
		mcp.WithDescription("Parse text as a workflow and render it as a Mermaid flowchart"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The response text to parse")),
		mcp.WithString("title", mcp.Description("Diagram title")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("deliverable.query",
		mcp.WithDescription("List stored parse results"),
		mcp.WithString("kind", mcp.Enum("workflow", "checklist"), mcp.Description("Restrict to one deliverable kind")),
		mcp.WithString("since", mcp.Description("RFC 3339 timestamp lower bound")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default: 20)")),
		mcp.WithString("filter", mcp.Description("CEL filter over records, e.g. record.layout == 'tree'")),
	)
}

// --- Handlers ---

func (s *Server) handleParseWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	title := req.GetString("title", "")
	envelope := req.GetBool("envelope", false)
	save := req.GetBool("save", false)

	ctx = logging.WithParseID(ctx, uuid.New().String())
	wf := s.parser.ParseWorkflow(ctx, text)

	if save {
		if saveErr := s.saveRecord(ctx, "workflow", wf.Layout, text, wf); saveErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("parse succeeded but save failed: %v", saveErr)), nil
		}
	}

	if envelope {
		viz := schema.VisualizationData{
			Type:  "workflow",
			Title: title,
			Data:  []any{},
			Config: schema.VisualizationConfig{
				Nodes:  wf.Nodes,
				Edges:  wf.Edges,
				Layout: wf.Layout,
			},
		}
		if viz.Title == "" {
			viz.Title = "Workflow"
		}
		return marshalResult(viz)
	}
	return marshalResult(wf)
}

func (s *Server) handleParseChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	filterExpr := req.GetString("filter", "")
	save := req.GetBool("save", false)

	ctx = logging.WithParseID(ctx, uuid.New().String())
	sections := s.parser.ParseChecklist(ctx, text)

	if filterExpr != "" {
		if s.filter == nil {
			return mcp.NewToolResultError("filtering is not enabled on this server"), nil
		}
		filtered, filterErr := s.filterSections(sections, filterExpr)
		if filterErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("filter failed: %v", filterErr)), nil
		}
		sections = filtered
	}

	if save {
		if saveErr := s.saveRecord(ctx, "checklist", "", text, sections); saveErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("parse succeeded but save failed: %v", saveErr)), nil
		}
	}
	return marshalResult(sections)
}

func (s *Server) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	title := req.GetString("title", "")

	ctx = logging.WithParseID(ctx, uuid.New().String())
	wf := s.parser.ParseWorkflow(ctx, text)
	return mcp.NewToolResultText(render.Mermaid(wf, title)), nil
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return marshalResult([]*store.ParseRecord{})
	}

	kind := req.GetString("kind", "")
	sinceRaw := req.GetString("since", "")
	limit := req.GetInt("limit", 20)
	filterExpr := req.GetString("filter", "")

	var since time.Time
	if sinceRaw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, sinceRaw)
		if parseErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since timestamp: %v", parseErr)), nil
		}
		since = parsed
	}

	records, err := s.store.ListRecords(ctx, store.RecordFilter{Kind: kind, Since: since, Limit: limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	if filterExpr != "" {
		if s.filter == nil {
			return mcp.NewToolResultError("filtering is not enabled on this server"), nil
		}
		var kept []*store.ParseRecord
		for _, rec := range records {
			match, matchErr := s.filter.Match(filterExpr, map[string]any{
				"record": map[string]any{
					"id":           rec.ID,
					"kind":         rec.Kind,
					"mode":         rec.Mode,
					"layout":       rec.Layout,
					"source_chars": rec.SourceChars,
					"created_at":   rec.CreatedAt.Format(time.RFC3339),
				},
			})
			if matchErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("filter failed: %v", matchErr)), nil
			}
			if match {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	return marshalResult(records)
}

// --- Helpers ---

func (s *Server) saveRecord(ctx context.Context, kind, layout, source string, result any) error {
	if s.store == nil {
		return schema.NewError(schema.ErrCodeStore, "persistence is not enabled on this server")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "marshal parse result").WithCause(err)
	}
	return s.store.SaveRecord(ctx, &store.ParseRecord{
		ID:          uuid.New().String(),
		Kind:        kind,
		Mode:        logging.Mode(ctx),
		Layout:      layout,
		SourceChars: len(source),
		Result:      raw,
		CreatedAt:   time.Now().UTC(),
	})
}

// filterSections applies a CEL item filter, keeping section structure.
// Sections whose items are all filtered out are dropped, but the result
// keeps the at-least-one-section contract.
func (s *Server) filterSections(sections []schema.ChecklistSection, expr string) ([]schema.ChecklistSection, error) {
	var out []schema.ChecklistSection
	for _, sec := range sections {
		var items []schema.ChecklistItem
		for _, item := range sec.Items {
			match, err := s.filter.MatchItem(expr, item)
			if err != nil {
				return nil, err
			}
			if match {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			out = append(out, schema.ChecklistSection{Title: sec.Title, Items: items})
		}
	}
	if len(out) == 0 {
		out = []schema.ChecklistSection{{Title: "Checklist", Items: []schema.ChecklistItem{}}}
	}
	return out, nil
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
