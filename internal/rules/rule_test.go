package rules_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warebill/billing/internal/order"
	"github.com/warebill/billing/internal/rules"
)

func snapshot() *order.Snapshot {
	weight := decimal.NewFromFloat(12.5)
	qty := int64(30)
	return &order.Snapshot{
		ID:              uuid.New(),
		ReferenceNumber: "REF-1001",
		ShipToCity:      "Toronto",
		ShipToState:     "ON",
		ShipToCountry:   "CA",
		Carrier:         "UPS Ground",
		WeightLb:        &weight,
		TotalItemQty:    &qty,
		SKUData:         `[{"sku":"abc","quantity":3},{"sku":"xyz","quantity":5}]`,
	}
}

func TestEvaluateNumeric(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()

	tests := []struct {
		name     string
		operator rules.Operator
		value    string
		want     bool
	}{
		{"gt true", rules.OpGT, "10", true},
		{"gt false", rules.OpGT, "12.5", false},
		{"lt", rules.OpLT, "13", true},
		{"eq", rules.OpEQ, "12.5", true},
		{"ne", rules.OpNE, "12.5", false},
		{"ge boundary", rules.OpGE, "12.5", true},
		{"le boundary", rules.OpLE, "12.5", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := rules.Rule{Field: rules.FieldWeightLb, Operator: tc.operator, Values: []string{tc.value}}
			require.Equal(t, tc.want, e.Evaluate(r, o))
		})
	}
}

func TestEvaluateNumericFailClosed(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()

	// Missing field.
	r := rules.Rule{Field: rules.FieldVolumeCuFt, Operator: rules.OpGT, Values: []string{"1"}}
	require.False(t, e.Evaluate(r, o))

	// Non-numeric comparison value.
	r = rules.Rule{Field: rules.FieldWeightLb, Operator: rules.OpGT, Values: []string{"heavy"}}
	require.False(t, e.Evaluate(r, o))

	// No values at all.
	r = rules.Rule{Field: rules.FieldWeightLb, Operator: rules.OpGT}
	require.False(t, e.Evaluate(r, o))

	// String operator on a numeric field.
	r = rules.Rule{Field: rules.FieldWeightLb, Operator: rules.OpContains, Values: []string{"1"}}
	require.False(t, e.Evaluate(r, o))
}

func TestEvaluateSKUCountField(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	r := rules.Rule{Field: rules.FieldSKUCount, Operator: rules.OpEQ, Values: []string{"2"}}
	require.True(t, e.Evaluate(r, o))
}

func TestEvaluateString(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()

	tests := []struct {
		name string
		rule rules.Rule
		want bool
	}{
		{"eq", rules.Rule{Field: rules.FieldShipToCity, Operator: rules.OpEQ, Values: []string{"Toronto"}}, true},
		{"ne", rules.Rule{Field: rules.FieldShipToCity, Operator: rules.OpNE, Values: []string{"Ottawa"}}, true},
		{"in list", rules.Rule{Field: rules.FieldShipToState, Operator: rules.OpIn, Values: []string{"BC", "ON"}}, true},
		{"not in list", rules.Rule{Field: rules.FieldShipToState, Operator: rules.OpNotIn, Values: []string{"BC", "AB"}}, true},
		{"contains any", rules.Rule{Field: rules.FieldCarrier, Operator: rules.OpContains, Values: []string{"FedEx", "UPS"}}, true},
		{"ncontains", rules.Rule{Field: rules.FieldCarrier, Operator: rules.OpNotContains, Values: []string{"FedEx", "USPS"}}, true},
		{"startswith any", rules.Rule{Field: rules.FieldReferenceNumber, Operator: rules.OpStartsWith, Values: []string{"ORD-", "REF-"}}, true},
		{"endswith any", rules.Rule{Field: rules.FieldReferenceNumber, Operator: rules.OpEndsWith, Values: []string{"1001"}}, true},
		{"absent field coerces empty", rules.Rule{Field: rules.FieldShipToName, Operator: rules.OpEQ, Values: []string{"Anyone"}}, false},
		{"numeric op on string field", rules.Rule{Field: rules.FieldShipToCity, Operator: rules.OpGT, Values: []string{"A"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, e.Evaluate(tc.rule, o))
		})
	}
}

func TestEvaluateSKUQuantity(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot() // normalized SKUs: ABC, XYZ

	tests := []struct {
		name string
		rule rules.Rule
		want bool
	}{
		{"contains match", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpContains, Values: []string{" abc "}}, true},
		{"contains miss", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpContains, Values: []string{"nope"}}, false},
		{"ncontains", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpNotContains, Values: []string{"nope"}}, true},
		{"in subset", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpIn, Values: []string{"abc", "xyz", "extra"}}, true},
		{"in not subset", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpIn, Values: []string{"abc"}}, false},
		{"ni disjoint", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpNotIn, Values: []string{"other"}}, true},
		{"ni overlap", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpNotIn, Values: []string{"xyz"}}, false},
		{"only_contains subset", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpOnlyContains, Values: []string{"abc", "xyz"}}, true},
		{"only_contains not subset", rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpOnlyContains, Values: []string{"abc"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, e.Evaluate(tc.rule, o))
		})
	}
}

func TestEvaluateSKUQuantityEmptyPayload(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	o.SKUData = "[]"

	// A payload that parses to an empty set keeps set semantics: negated
	// operators hold vacuously, the others cannot match.
	tests := []struct {
		operator rules.Operator
		want     bool
	}{
		{rules.OpContains, false},
		{rules.OpNotContains, true},
		{rules.OpIn, false},
		{rules.OpOnlyContains, false},
		{rules.OpNotIn, true},
	}
	for _, tc := range tests {
		t.Run(string(tc.operator), func(t *testing.T) {
			r := rules.Rule{Field: rules.FieldSKUQuantity, Operator: tc.operator, Values: []string{"abc"}}
			require.Equal(t, tc.want, e.Evaluate(r, o))
		})
	}

	// A missing payload still fails closed for every operator.
	o.SKUData = nil
	r := rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpNotContains, Values: []string{"abc"}}
	require.False(t, e.Evaluate(r, o))
}

func TestEvaluateSKUQuantityMalformedPayload(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	o.SKUData = "{broken"

	r := rules.Rule{Field: rules.FieldSKUQuantity, Operator: rules.OpContains, Values: []string{"abc"}}
	require.False(t, e.Evaluate(r, o))
	// Even negated operators fail closed on an unparseable payload.
	r.Operator = rules.OpNotContains
	require.False(t, e.Evaluate(r, o))
}

func TestEvaluateUnknownField(t *testing.T) {
	e := rules.Evaluator{}
	r := rules.Rule{Field: "shoe_size", Operator: rules.OpEQ, Values: []string{"9"}}
	require.False(t, e.Evaluate(r, snapshot()))
	require.False(t, e.Evaluate(rules.Rule{Field: rules.FieldCarrier, Operator: rules.OpEQ, Values: []string{"UPS Ground"}}, nil))
}
