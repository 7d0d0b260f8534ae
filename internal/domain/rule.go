package domain

import "fmt"

// ─── Requirement Rules ──────────────────────────────────────────────────────
// Badge requirements are a small closed AST instead of free-form field
// lookups. Threshold compares a named snapshot field, Custom delegates to a
// registered predicate, All/Any combine children.

// RuleKind discriminates Rule nodes.
type RuleKind string

const (
	RuleThreshold RuleKind = "threshold"
	RuleCustom    RuleKind = "custom"
	RuleAll       RuleKind = "all"
	RuleAny       RuleKind = "any"
)

// Op is a threshold comparison operator.
type Op string

const (
	OpGTE Op = ">="
	OpGT  Op = ">"
	OpEQ  Op = "=="
	OpLTE Op = "<="
	OpLT  Op = "<"
)

// Compare applies the operator to (actual, target).
func (o Op) Compare(actual, target int64) (bool, error) {
	switch o {
	case OpGTE, "":
		return actual >= target, nil
	case OpGT:
		return actual > target, nil
	case OpEQ:
		return actual == target, nil
	case OpLTE:
		return actual <= target, nil
	case OpLT:
		return actual < target, nil
	}
	return false, fmt.Errorf("%w: operator %q", ErrInvalidRule, o)
}

// Rule is one node of a requirement tree.
type Rule struct {
	Kind      RuleKind `json:"kind" toml:"kind"`
	Field     string   `json:"field,omitempty" toml:"field,omitempty"`
	Op        Op       `json:"op,omitempty" toml:"op,omitempty"`
	Value     int64    `json:"value,omitempty" toml:"value,omitempty"`
	Predicate string   `json:"predicate,omitempty" toml:"predicate,omitempty"`
	Rules     []Rule   `json:"rules,omitempty" toml:"rules,omitempty"`
}

// Threshold builds a field comparison rule.
func Threshold(field string, op Op, value int64) Rule {
	return Rule{Kind: RuleThreshold, Field: field, Op: op, Value: value}
}

// Custom builds a rule answered by a registered predicate.
func Custom(predicate string) Rule {
	return Rule{Kind: RuleCustom, Predicate: predicate}
}

// All is satisfied when every child is.
func All(rules ...Rule) Rule {
	return Rule{Kind: RuleAll, Rules: rules}
}

// Any is satisfied when at least one child is.
func Any(rules ...Rule) Rule {
	return Rule{Kind: RuleAny, Rules: rules}
}

// Validate checks the tree shape without evaluating it.
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleThreshold:
		if r.Field == "" {
			return fmt.Errorf("%w: threshold without field", ErrInvalidRule)
		}
		if _, err := r.Op.Compare(0, 0); err != nil {
			return err
		}
	case RuleCustom:
		if r.Predicate == "" {
			return fmt.Errorf("%w: custom rule without predicate", ErrInvalidRule)
		}
	case RuleAll, RuleAny:
		if len(r.Rules) == 0 {
			return fmt.Errorf("%w: %s with no children", ErrInvalidRule, r.Kind)
		}
		for i, child := range r.Rules {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", r.Kind, i, err)
			}
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidRule, r.Kind)
	}
	return nil
}

// String renders the rule for logs and CLI output.
func (r Rule) String() string {
	switch r.Kind {
	case RuleThreshold:
		op := r.Op
		if op == "" {
			op = OpGTE
		}
		return fmt.Sprintf("%s %s %d", r.Field, op, r.Value)
	case RuleCustom:
		return "custom(" + r.Predicate + ")"
	case RuleAll, RuleAny:
		s := string(r.Kind) + "("
		for i, child := range r.Rules {
			if i > 0 {
				s += ", "
			}
			s += child.String()
		}
		return s + ")"
	}
	return "invalid"
}
