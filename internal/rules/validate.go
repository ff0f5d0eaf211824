package rules

import (
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(ruleStructLevel, Rule{})
	v.RegisterStructValidation(stepStructLevel, Step{})
	return v
}

var numericOnlyOps = map[Operator]struct{}{
	OpGT: {}, OpLT: {}, OpGE: {}, OpLE: {},
}

var textOnlyOps = map[Operator]struct{}{
	OpContains: {}, OpNotContains: {}, OpOnlyContains: {}, OpStartsWith: {}, OpEndsWith: {},
}

// ruleStructLevel enforces the legal operator subset per field category, the
// same checks the persistence layer's admin surface performs before a rule is
// stored.
func ruleStructLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(Rule)
	switch r.Field.Category() {
	case CategoryString:
		if _, bad := numericOnlyOps[r.Operator]; bad {
			sl.ReportError(r.Operator, "Operator", "Operator", "string_field_operator", string(r.Field))
		}
	case CategoryNumeric:
		if _, bad := textOnlyOps[r.Operator]; bad {
			sl.ReportError(r.Operator, "Operator", "Operator", "numeric_field_operator", string(r.Field))
			return
		}
		if len(r.Values) == 0 {
			sl.ReportError(r.Values, "Values", "Values", "numeric_value_required", "")
			return
		}
		if _, err := decimal.NewFromString(r.Values[0]); err != nil {
			sl.ReportError(r.Values, "Values", "Values", "numeric_value", r.Values[0])
		}
	case CategorySKU:
		switch r.Operator {
		case OpGT, OpLT, OpGE, OpLE, OpStartsWith, OpEndsWith:
			sl.ReportError(r.Operator, "Operator", "Operator", "sku_field_operator", string(r.Field))
		case OpContains, OpNotContains, OpOnlyContains:
			if len(r.Values) == 0 {
				sl.ReportError(r.Values, "Values", "Values", "sku_value_required", "")
			}
		}
	default:
		sl.ReportError(r.Field, "Field", "Field", "known_field", string(r.Field))
	}
}

func stepStructLevel(sl validator.StructLevel) {
	s := sl.Current().Interface().(Step)
	switch s.Type {
	case StepFlatFee, StepPercentage, StepPerUnit, StepWeightBased, StepVolumeBased:
	case StepTieredPercentage:
		if len(s.Tiers) == 0 {
			sl.ReportError(s.Tiers, "Tiers", "Tiers", "tiers_required", "")
		}
		for _, tier := range s.Tiers {
			if tier.Min.GreaterThan(tier.Max) {
				sl.ReportError(s.Tiers, "Tiers", "Tiers", "tier_range", "")
				break
			}
		}
	case StepProductSpecific:
		if len(s.Rates) == 0 {
			sl.ReportError(s.Rates, "Rates", "Rates", "rates_required", "")
		}
	default:
		sl.ReportError(s.Type, "Type", "Type", "known_step_type", string(s.Type))
	}
}

// ValidateRule checks a rule definition at the storage boundary.
func ValidateRule(r Rule) error {
	return validate.Struct(r)
}

// ValidateStep checks one calculation step definition.
func ValidateStep(s Step) error {
	return validate.Struct(s)
}

// ValidateAdvancedRule checks the base rule, every structured condition, and
// every calculation step of an advanced rule definition.
func ValidateAdvancedRule(r AdvancedRule) error {
	var errs []error
	if err := ValidateRule(r.Rule); err != nil {
		errs = append(errs, err)
	}
	for field, cond := range r.Conditions {
		gate := Rule{Field: field, Operator: cond.Operator, Values: []string{fmt.Sprint(cond.Value)}}
		if err := ValidateRule(gate); err != nil {
			errs = append(errs, fmt.Errorf("condition %s: %w", field, err))
		}
	}
	for i, step := range r.Calculations {
		if err := ValidateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("calculation %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
