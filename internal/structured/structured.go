// Package structured is the fast path for responses that already carry a
// machine-readable workflow graph as JSON. Candidate documents are
// validated against an embedded JSON Schema before any field access; the
// result is a tagged value, never a duck-typed map. Any failure along the
// way means "not structured" and the caller falls through to text
// extraction; nothing is surfaced upstream.
package structured

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/deliverable/pkg/schema"
)

// graphSchemaJSON validates the canonical structured-input shape.
// Embedded as a constant to avoid filesystem dependencies.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://deliverable.dev/schemas/graph.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": { "type": "string", "minLength": 1 },
          "type": { "type": "string", "enum": ["start", "step", "decision", "end"] },
          "label": { "type": "string" },
          "description": { "type": "string" },
          "substeps": { "type": "array", "items": { "type": "string" } }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id": { "type": "string" },
          "source": { "type": "string", "minLength": 1 },
          "target": { "type": "string", "minLength": 1 },
          "label": { "type": "string" }
        }
      }
    },
    "layout": { "type": "string" }
  }
}`

// graphQueries are tried in order against parsed JSON to locate the graph
// payload when the document nests it under an envelope. The first query
// producing a candidate that passes schema validation wins.
var graphQueries = []string{
	".",
	".config",
	".workflow",
	".data",
}

// Input is the validated structured form of a workflow graph, decoded
// only after schema validation succeeded.
type Input struct {
	Nodes  []schema.WorkflowNode `json:"nodes"`
	Edges  []schema.WorkflowEdge `json:"edges"`
	Layout string                `json:"layout"`
}

// Prober probes cleaned text for a structured JSON graph. Safe for
// concurrent use; compiled schema and queries are shared.
type Prober struct {
	schema  *jsonschema.Schema
	queries []*gojq.Code
}

var (
	defaultProber *Prober
	proberOnce    sync.Once
)

// Default returns the shared Prober. The embedded schema and queries are
// constants, so construction failure is a programming error.
func Default() *Prober {
	proberOnce.Do(func() {
		p, err := NewProber()
		if err != nil {
			panic("structured: build default prober: " + err.Error())
		}
		defaultProber = p
	})
	return defaultProber
}

// NewProber compiles the graph schema and envelope queries.
func NewProber() (*Prober, error) {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "unmarshal graph schema").WithCause(err)
	}
	if err := c.AddResource("https://deliverable.dev/schemas/graph.json", doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "add graph schema resource").WithCause(err)
	}
	compiled, err := c.Compile("https://deliverable.dev/schemas/graph.json")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "compile graph schema").WithCause(err)
	}

	p := &Prober{schema: compiled}
	for _, q := range graphQueries {
		parsed, err := gojq.Parse(q)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse graph query %q", q).WithCause(err)
		}
		code, err := gojq.Compile(parsed,
			gojq.WithEnvironLoader(func() []string { return nil }),
		)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "compile graph query %q", q).WithCause(err)
		}
		p.queries = append(p.queries, code)
	}
	return p, nil
}

// Probe attempts to interpret text as a structured graph document. The
// boolean reports success; false always means the caller should run text
// extraction instead.
func (p *Prober) Probe(ctx context.Context, text string) (*Input, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false
	}

	for _, query := range p.queries {
		iter := query.RunWithContext(ctx, doc)
		candidate, ok := iter.Next()
		if !ok {
			continue
		}
		if _, isErr := candidate.(error); isErr {
			continue
		}
		if candidate == nil {
			continue
		}
		if err := p.schema.Validate(candidate); err != nil {
			continue
		}
		in, err := decode(candidate)
		if err != nil {
			continue
		}
		return in, true
	}
	return nil, false
}

// decode converts a validated candidate into the typed Input, filling in
// defaults the schema leaves optional.
func decode(candidate any) (*Input, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(in.Nodes))
	for i := range in.Nodes {
		if in.Nodes[i].Kind == "" {
			in.Nodes[i].Kind = schema.NodeKindStep
		}
		if in.Nodes[i].Label == "" {
			in.Nodes[i].Label = in.Nodes[i].ID
		}
		ids[in.Nodes[i].ID] = struct{}{}
	}

	// Drop edges referencing unknown nodes so the source/target invariant
	// holds, and backfill missing edge IDs.
	kept := in.Edges[:0]
	for i, e := range in.Edges {
		if _, ok := ids[e.Source]; !ok {
			continue
		}
		if _, ok := ids[e.Target]; !ok {
			continue
		}
		if e.ID == "" {
			e.ID = "edge-" + strconv.Itoa(i)
		}
		kept = append(kept, e)
	}
	in.Edges = kept

	if in.Layout == "" {
		in.Layout = schema.FormatLinear.Layout()
	}
	return &in, nil
}
