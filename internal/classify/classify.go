// Package classify decides which edge-synthesis strategy applies to a
// block of normalized text. The decision is an ordered rule list: rules
// are evaluated in sequence and the first match wins, which makes the
// precedence auditable and testable in isolation.
package classify

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/deliverable/pkg/schema"
)

// Rule pairs a compiled predicate with the format tag it selects.
type Rule struct {
	Name    string
	Source  string
	Tag     schema.FormatTag
	program *vm.Program
}

// Classifier evaluates an ordered rule list over lower-cased text.
// Safe for concurrent use after construction.
type Classifier struct {
	rules    []Rule
	fallback schema.FormatTag
}

// defaultRules is the precedence order. Decision-tree cues are the most
// specific (co-occurrence of two signals) so they are checked first; a
// generic "review" mention must not pull an approval flow into linear.
var defaultRules = []struct {
	name   string
	source string
	tag    schema.FormatTag
}{
	{
		name:   "decision_tree",
		source: `text contains "decision" && (text contains "yes" || text contains "no")`,
		tag:    schema.FormatDecision,
	},
	{
		name:   "parallel",
		source: `text contains "parallel" || text contains "simultaneous" || text contains "concurrent"`,
		tag:    schema.FormatParallel,
	},
	{
		name:   "approval",
		source: `text contains "approval" && text contains "review"`,
		tag:    schema.FormatApproval,
	},
}

// New builds a Classifier with the default rule set. The rule predicates
// are expr programs over a single `contains(substr)` helper; compilation
// of the defaults cannot fail, so New panics on a broken built-in rule.
func New() *Classifier {
	c := &Classifier{fallback: schema.FormatLinear}
	for _, r := range defaultRules {
		rule, err := compileRule(r.name, r.source, r.tag)
		if err != nil {
			panic("classify: invalid built-in rule " + r.name + ": " + err.Error())
		}
		c.rules = append(c.rules, rule)
	}
	return c
}

// NewWithRules builds a Classifier from caller-supplied (predicate, tag)
// pairs, evaluated in the given order before falling back to linear.
func NewWithRules(rules []struct {
	Name   string
	Source string
	Tag    schema.FormatTag
}) (*Classifier, error) {
	c := &Classifier{fallback: schema.FormatLinear}
	for _, r := range rules {
		rule, err := compileRule(r.Name, r.Source, r.Tag)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, rule)
	}
	return c, nil
}

func compileRule(name, source string, tag schema.FormatTag) (Rule, error) {
	program, err := expr.Compile(source,
		expr.Env(ruleEnv("")),
		expr.AsBool(),
	)
	if err != nil {
		return Rule{}, schema.NewErrorf(schema.ErrCodeValidation,
			"classify rule %q: %s", name, err.Error()).WithCause(err)
	}
	return Rule{Name: name, Source: source, Tag: tag, program: program}, nil
}

// ruleEnv builds the expr environment for one evaluation. Text is
// lower-cased once so predicates stay case-insensitive.
func ruleEnv(lower string) map[string]any {
	return map[string]any{
		"text": lower,
		"contains": func(substr string) bool {
			return strings.Contains(lower, substr)
		},
	}
}

// Classify returns the format tag for the given normalized text. It never
// fails: a predicate evaluation error skips that rule, and no match yields
// the linear fallback. There is no "unknown" format value.
func (c *Classifier) Classify(text string) schema.FormatTag {
	env := ruleEnv(strings.ToLower(text))
	for _, rule := range c.rules {
		out, err := expr.Run(rule.program, env)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return rule.Tag
		}
	}
	return c.fallback
}

// Rules exposes the active rule list in evaluation order, for auditing.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}
