package rules

import (
	"github.com/warebill/billing/internal/order"
)

// LogicOp combines the boolean results of a group's member rules.
type LogicOp string

// NOR and NOT are deliberately distinct labels with identical semantics;
// stored rule configurations may reference either.
const (
	LogicAND  LogicOp = "AND"
	LogicOR   LogicOp = "OR"
	LogicNOT  LogicOp = "NOT"
	LogicXOR  LogicOp = "XOR"
	LogicNAND LogicOp = "NAND"
	LogicNOR  LogicOp = "NOR"
)

// Group is a boolean combinator over a set of atomic rules and advanced
// rules. A group with no members always applies.
type Group struct {
	Logic    LogicOp        `json:"logic"`
	Rules    []Rule         `json:"rules,omitempty"`
	Advanced []AdvancedRule `json:"advanced,omitempty"`
}

// EvaluateGroup reports whether the order satisfies the group under its logic
// operator. Member evaluations are pure, so no short-circuiting is needed for
// correctness; every member is evaluated.
func (e Evaluator) EvaluateGroup(g Group, o *order.Snapshot) bool {
	total := len(g.Rules) + len(g.Advanced)
	if total == 0 {
		return true
	}
	results := make([]bool, 0, total)
	for _, r := range g.Rules {
		results = append(results, e.Evaluate(r, o))
	}
	for _, ar := range g.Advanced {
		results = append(results, e.EvaluateAdvanced(ar, o))
	}

	switch g.Logic {
	case LogicAND:
		return countTrue(results) == len(results)
	case LogicOR:
		return countTrue(results) > 0
	case LogicNOT, LogicNOR:
		return countTrue(results) == 0
	case LogicXOR:
		return countTrue(results) == 1
	case LogicNAND:
		return countTrue(results) < len(results)
	default:
		e.logger().Warn().Str("logic", string(g.Logic)).Msg("unknown logic operator")
		return false
	}
}

func countTrue(results []bool) int {
	n := 0
	for _, r := range results {
		if r {
			n++
		}
	}
	return n
}
