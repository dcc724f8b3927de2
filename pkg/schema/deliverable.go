package schema

// FormatTag identifies which edge-synthesis strategy applies to a workflow.
type FormatTag string

const (
	FormatLinear   FormatTag = "linear_process"
	FormatDecision FormatTag = "decision_tree"
	FormatParallel FormatTag = "parallel_workflow"
	FormatApproval FormatTag = "approval_workflow"
)

// Layout returns the renderer hint derived from the format tag.
func (f FormatTag) Layout() string {
	switch f {
	case FormatDecision:
		return "tree"
	case FormatParallel:
		return "parallel"
	case FormatApproval:
		return "approval"
	default:
		return "sequential"
	}
}

// NodeKind classifies a workflow node by its role in the graph.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindStep     NodeKind = "step"
	NodeKindDecision NodeKind = "decision"
	NodeKindEnd      NodeKind = "end"
)

// WorkflowNode is a single node in a parsed workflow graph.
// Label is derived from the step's primary line and truncated for
// renderability; the full text is not preserved elsewhere.
type WorkflowNode struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Substeps    []string `json:"substeps,omitempty"`
}

// WorkflowEdge is a directed edge between two nodes. Source and Target
// always reference IDs present in the accompanying node collection.
type WorkflowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// ParsedWorkflow is the workflow-path result. It is constructed fresh per
// parse call and immutable once returned; the caller owns storage.
type ParsedWorkflow struct {
	Nodes  []WorkflowNode `json:"nodes"`
	Edges  []WorkflowEdge `json:"edges"`
	Layout string         `json:"layout"`
}

// Priority is a checklist item priority level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a free-text annotation word to a Priority,
// defaulting to medium for unrecognized words.
func ParsePriority(word string) Priority {
	switch word {
	case "high", "urgent", "critical":
		return PriorityHigh
	case "low", "minor", "optional":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ChecklistItem is one entry of a parsed checklist. IDs are unique within
// a single parse call only; they are not durable identifiers.
type ChecklistItem struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Priority  Priority `json:"priority"`
	Deadline  string   `json:"deadline,omitempty"`
	Completed bool     `json:"completed"`
	Section   string   `json:"section"`
}

// ChecklistSection groups items under a heading. A parse result always
// contains at least one section, even when no items were recognized.
type ChecklistSection struct {
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

// VisualizationConfig carries the graph payload inside a visualization
// envelope.
type VisualizationConfig struct {
	Nodes  []WorkflowNode `json:"nodes"`
	Edges  []WorkflowEdge `json:"edges"`
	Layout string         `json:"layout"`
}

// VisualizationData is the envelope handed to the rendering collaborator.
// It shares its shape with non-workflow chart types, which keep their data
// in Data; workflow results carry everything in Config.
type VisualizationData struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Data   []any               `json:"data"`
	Config VisualizationConfig `json:"config"`
}
