package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deliverable/pkg/schema"
)

func TestClassifyFormats(t *testing.T) {
	tests := []struct {
		name string
		text string
		want schema.FormatTag
	}{
		{"decision with yes", "make a decision: yes or proceed", schema.FormatDecision},
		{"decision with no", "Decision point. If no, stop.", schema.FormatDecision},
		{"parallel", "run these tasks in parallel", schema.FormatParallel},
		{"simultaneous", "execute both steps simultaneously", schema.FormatParallel},
		{"concurrent", "these run concurrently", schema.FormatParallel},
		{"approval", "submit for approval, then review feedback", schema.FormatApproval},
		{"plain linear", "Step 1: gather data\nStep 2: clean data", schema.FormatLinear},
		{"empty", "", schema.FormatLinear},
		{"decision without outcome words", "a big decision awaits", schema.FormatLinear},
		{"approval without review", "needs approval", schema.FormatLinear},
	}

	c := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text))
		})
	}
}

func TestDecisionPrecedesParallel(t *testing.T) {
	// Both signal families present: the decision rule is evaluated first.
	text := "These parallel tracks each end in a decision: yes means ship, no means revisit."
	assert.Equal(t, schema.FormatDecision, New().Classify(text))
}

func TestApprovalPrecedesLinearDespiteReviewMention(t *testing.T) {
	text := "Send the document for approval. The review takes two days."
	assert.Equal(t, schema.FormatApproval, New().Classify(text))
}

func TestClassifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, schema.FormatParallel, New().Classify("RUN IN PARALLEL"))
}

func TestClassifyDeterministic(t *testing.T) {
	c := New()
	text := "decision yes no parallel approval review"
	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(text))
	}
}

func TestRulesExposeEvaluationOrder(t *testing.T) {
	rules := New().Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, schema.FormatDecision, rules[0].Tag)
	assert.Equal(t, schema.FormatParallel, rules[1].Tag)
	assert.Equal(t, schema.FormatApproval, rules[2].Tag)
}

func TestNewWithRulesRejectsBrokenPredicate(t *testing.T) {
	_, err := NewWithRules([]struct {
		Name   string
		Source string
		Tag    schema.FormatTag
	}{
		{Name: "broken", Source: `contains(`, Tag: schema.FormatLinear},
	})
	require.Error(t, err)
}

func TestNewWithRulesCustomOrder(t *testing.T) {
	c, err := NewWithRules([]struct {
		Name   string
		Source string
		Tag    schema.FormatTag
	}{
		{Name: "always", Source: `text contains ""`, Tag: schema.FormatApproval},
	})
	require.NoError(t, err)
	assert.Equal(t, schema.FormatApproval, c.Classify("anything"))
}
