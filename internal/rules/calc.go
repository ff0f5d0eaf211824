package rules

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warebill/billing/internal/order"
)

// StepType names one monetary adjustment in a calculation chain.
type StepType string

const (
	StepFlatFee          StepType = "flat_fee"
	StepPercentage       StepType = "percentage"
	StepPerUnit          StepType = "per_unit"
	StepWeightBased      StepType = "weight_based"
	StepVolumeBased      StepType = "volume_based"
	StepTieredPercentage StepType = "tiered_percentage"
	StepProductSpecific  StepType = "product_specific"
)

// Tier is one band of a tiered-percentage step. The percentage applies when
// the running amount falls inside [Min, Max].
type Tier struct {
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Step is one calculation in a chain. Value carries the numeric parameter for
// the simple step types; Tiers and Rates carry the richer payloads of the
// tiered and product-specific types.
type Step struct {
	Type  StepType                   `json:"type" validate:"required"`
	Value decimal.Decimal            `json:"value"`
	Tiers []Tier                     `json:"tiers,omitempty"`
	Rates map[string]decimal.Decimal `json:"rates,omitempty"`
}

// Condition is extra gating for an advanced rule, keyed by field.
type Condition struct {
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// AdvancedRule extends Rule with structured conditions and an ordered
// calculation chain.
type AdvancedRule struct {
	Rule
	Conditions   map[Field]Condition `json:"conditions,omitempty"`
	Calculations []Step              `json:"calculations,omitempty"`
}

// EvaluateAdvanced reports whether the advanced rule's boolean half holds:
// the base rule plus every structured condition.
func (e Evaluator) EvaluateAdvanced(r AdvancedRule, o *order.Snapshot) bool {
	if !e.Evaluate(r.Rule, o) {
		return false
	}
	for field, cond := range r.Conditions {
		gate := Rule{Field: field, Operator: cond.Operator, Values: []string{fmt.Sprint(cond.Value)}}
		if !e.Evaluate(gate, o) {
			return false
		}
	}
	return true
}

var hundred = decimal.NewFromInt(100)

// ApplyChain runs the steps strictly in order, each reading the running
// amount left by the previous one. Any step failure aborts the whole chain
// and returns the original base amount untouched; partial application never
// escapes.
func (e Evaluator) ApplyChain(steps []Step, o *order.Snapshot, base decimal.Decimal) decimal.Decimal {
	amount, err := runChain(steps, o, base)
	if err != nil {
		e.logger().Error().Err(err).Msg("calculation chain aborted")
		return base
	}
	return amount
}

// ApplyAdjustments applies an advanced rule's flat adjustment followed by its
// calculation chain. A chain failure rolls the amount all the way back to
// base, adjustment included.
func (e Evaluator) ApplyAdjustments(r AdvancedRule, o *order.Snapshot, base decimal.Decimal) decimal.Decimal {
	seed := base
	if r.Adjustment != nil {
		seed = seed.Add(*r.Adjustment)
	}
	amount, err := runChain(r.Calculations, o, seed)
	if err != nil {
		e.logger().Error().Err(err).Msg("advanced rule calculations aborted")
		return base
	}
	return amount
}

func runChain(steps []Step, o *order.Snapshot, seed decimal.Decimal) (decimal.Decimal, error) {
	amount := seed
	for i, step := range steps {
		next, err := applyStep(step, o, amount)
		if err != nil {
			return seed, fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}
		amount = next
	}
	return amount, nil
}

func applyStep(step Step, o *order.Snapshot, amount decimal.Decimal) (decimal.Decimal, error) {
	switch step.Type {
	case StepFlatFee:
		return amount.Add(step.Value), nil
	case StepPercentage:
		return amount.Add(amount.Mul(step.Value).Div(hundred)), nil
	case StepPerUnit:
		qty, ok := o.Quantity()
		if !ok {
			return amount, errors.New("order has no total item quantity")
		}
		return amount.Add(decimal.NewFromInt(qty).Mul(step.Value)), nil
	case StepWeightBased:
		weight, ok := o.Weight()
		if !ok {
			return amount, nil
		}
		return amount.Add(weight.Mul(step.Value)), nil
	case StepVolumeBased:
		volume, ok := o.Volume()
		if !ok {
			return amount, nil
		}
		return amount.Add(volume.Mul(step.Value)), nil
	case StepTieredPercentage:
		for _, tier := range step.Tiers {
			if amount.GreaterThanOrEqual(tier.Min) && amount.LessThanOrEqual(tier.Max) {
				return amount.Add(amount.Mul(tier.Percentage).Div(hundred)), nil
			}
		}
		return amount, nil
	case StepProductSpecific:
		if o == nil || o.SKUData == nil {
			return amount, nil
		}
		entries, err := order.DecodeSKUPayload(o.SKUData)
		if err != nil {
			return amount, err
		}
		quantities := order.ParseSKUQuantities(entries)
		for sku, qty := range quantities {
			if rate, ok := lookupRate(step.Rates, sku); ok {
				amount = amount.Add(qty.Mul(rate))
			}
		}
		return amount, nil
	default:
		return amount, fmt.Errorf("unknown calculation type %q", step.Type)
	}
}

func lookupRate(rates map[string]decimal.Decimal, normalizedSKU string) (decimal.Decimal, bool) {
	for sku, rate := range rates {
		if order.NormalizeSKU(sku) == normalizedSKU {
			return rate, true
		}
	}
	return decimal.Decimal{}, false
}
