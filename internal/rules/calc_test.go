package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warebill/billing/internal/rules"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyChainFlatFeeThenPercentage(t *testing.T) {
	e := rules.Evaluator{}
	steps := []rules.Step{
		{Type: rules.StepFlatFee, Value: dec("10")},
		{Type: rules.StepPercentage, Value: dec("50")},
	}
	got := e.ApplyChain(steps, snapshot(), decimal.Zero)
	require.True(t, got.Equal(dec("15")), "got %s", got)
}

func TestApplyChainAbortsToBaseOnMalformedStep(t *testing.T) {
	e := rules.Evaluator{}
	steps := []rules.Step{
		{Type: rules.StepFlatFee, Value: dec("10")},
		{Type: rules.StepPercentage, Value: dec("50")},
		{Type: "bogus", Value: dec("1")},
	}
	base := dec("7")
	got := e.ApplyChain(steps, snapshot(), base)
	require.True(t, got.Equal(base), "partial application must not escape, got %s", got)
}

func TestApplyChainPerUnitAndWeight(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot() // qty 30, weight 12.5
	steps := []rules.Step{
		{Type: rules.StepPerUnit, Value: dec("0.1")},
		{Type: rules.StepWeightBased, Value: dec("2")},
	}
	got := e.ApplyChain(steps, o, decimal.Zero)
	require.True(t, got.Equal(dec("28")), "30*0.1 + 12.5*2 = 28, got %s", got)
}

func TestApplyChainPerUnitMissingQuantityAborts(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	o.TotalItemQty = nil
	steps := []rules.Step{
		{Type: rules.StepFlatFee, Value: dec("5")},
		{Type: rules.StepPerUnit, Value: dec("1")},
	}
	got := e.ApplyChain(steps, o, dec("3"))
	require.True(t, got.Equal(dec("3")))
}

func TestApplyChainSkipsAbsentWeightAndVolume(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	o.WeightLb = nil
	o.VolumeCuFt = nil
	steps := []rules.Step{
		{Type: rules.StepFlatFee, Value: dec("4")},
		{Type: rules.StepWeightBased, Value: dec("100")},
		{Type: rules.StepVolumeBased, Value: dec("100")},
	}
	got := e.ApplyChain(steps, o, decimal.Zero)
	require.True(t, got.Equal(dec("4")))
}

func TestApplyChainTieredPercentageFirstMatchWins(t *testing.T) {
	e := rules.Evaluator{}
	steps := []rules.Step{
		{Type: rules.StepTieredPercentage, Tiers: []rules.Tier{
			{Min: dec("0"), Max: dec("50"), Percentage: dec("10")},
			{Min: dec("0"), Max: dec("200"), Percentage: dec("50")},
		}},
	}
	got := e.ApplyChain(steps, snapshot(), dec("40"))
	require.True(t, got.Equal(dec("44")), "first tier applies once, got %s", got)

	// Amount outside every tier passes through unchanged.
	got = e.ApplyChain(steps, snapshot(), dec("500"))
	require.True(t, got.Equal(dec("500")))
}

func TestApplyChainProductSpecific(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot() // ABC qty 3, XYZ qty 5
	steps := []rules.Step{
		{Type: rules.StepProductSpecific, Rates: map[string]decimal.Decimal{
			"abc": dec("2"), // normalizes to ABC
		}},
	}
	got := e.ApplyChain(steps, o, decimal.Zero)
	require.True(t, got.Equal(dec("6")))
}

func TestApplyChainProductSpecificBadPayloadAborts(t *testing.T) {
	e := rules.Evaluator{}
	o := snapshot()
	o.SKUData = "[{oops"
	steps := []rules.Step{
		{Type: rules.StepFlatFee, Value: dec("10")},
		{Type: rules.StepProductSpecific, Rates: map[string]decimal.Decimal{"abc": dec("2")}},
	}
	got := e.ApplyChain(steps, o, dec("1"))
	require.True(t, got.Equal(dec("1")))
}

func TestApplyAdjustmentsFlatPrefix(t *testing.T) {
	e := rules.Evaluator{}
	adj := dec("5")
	r := rules.AdvancedRule{
		Rule: rules.Rule{Field: rules.FieldCarrier, Operator: rules.OpContains, Values: []string{"UPS"}, Adjustment: &adj},
		Calculations: []rules.Step{
			{Type: rules.StepPercentage, Value: dec("100")},
		},
	}
	got := e.ApplyAdjustments(r, snapshot(), dec("10"))
	require.True(t, got.Equal(dec("30")), "(10+5)*2 = 30, got %s", got)
}

func TestApplyAdjustmentsAbortDropsAdjustmentToo(t *testing.T) {
	e := rules.Evaluator{}
	adj := dec("5")
	r := rules.AdvancedRule{
		Rule: rules.Rule{Field: rules.FieldCarrier, Operator: rules.OpContains, Values: []string{"UPS"}, Adjustment: &adj},
		Calculations: []rules.Step{
			{Type: "bogus"},
		},
	}
	got := e.ApplyAdjustments(r, snapshot(), dec("10"))
	require.True(t, got.Equal(dec("10")))
}
