package rules

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warebill/billing/internal/order"
)

// Field identifies an order attribute a rule can test.
type Field string

// Order fields addressable by rules. The set is closed: anything else is
// rejected at validation time and evaluates to false at runtime.
const (
	FieldReferenceNumber Field = "reference_number"
	FieldShipToName      Field = "ship_to_name"
	FieldShipToCompany   Field = "ship_to_company"
	FieldShipToCity      Field = "ship_to_city"
	FieldShipToState     Field = "ship_to_state"
	FieldShipToCountry   Field = "ship_to_country"
	FieldCarrier         Field = "carrier"
	FieldNotes           Field = "notes"
	FieldSKUName         Field = "sku_name"
	FieldWeightLb        Field = "weight_lb"
	FieldLineItems       Field = "line_items"
	FieldTotalItemQty    Field = "total_item_qty"
	FieldVolumeCuFt      Field = "volume_cuft"
	FieldPackages        Field = "packages"
	FieldSKUCount        Field = "sku_count"
	FieldSKUQuantity     Field = "sku_quantity"
)

// FieldCategory partitions fields by the operator set they support.
type FieldCategory int

const (
	CategoryUnknown FieldCategory = iota
	CategoryString
	CategoryNumeric
	CategorySKU
)

// Category returns the operator category of the field.
func (f Field) Category() FieldCategory {
	switch f {
	case FieldReferenceNumber, FieldShipToName, FieldShipToCompany, FieldShipToCity,
		FieldShipToState, FieldShipToCountry, FieldCarrier, FieldNotes, FieldSKUName:
		return CategoryString
	case FieldWeightLb, FieldLineItems, FieldTotalItemQty, FieldVolumeCuFt,
		FieldPackages, FieldSKUCount:
		return CategoryNumeric
	case FieldSKUQuantity:
		return CategorySKU
	default:
		return CategoryUnknown
	}
}

// Operator is a comparison applied between an order field and rule values.
type Operator string

const (
	OpGT           Operator = "gt"
	OpLT           Operator = "lt"
	OpEQ           Operator = "eq"
	OpNE           Operator = "ne"
	OpGE           Operator = "ge"
	OpLE           Operator = "le"
	OpIn           Operator = "in"
	OpNotIn        Operator = "ni"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "ncontains"
	OpOnlyContains Operator = "only_contains"
	OpStartsWith   Operator = "startswith"
	OpEndsWith     Operator = "endswith"
)

// Rule is one atomic condition: a field, an operator, and the literal values
// the field is compared against. Multi-value encodings (semicolon-joined
// strings in legacy storage) are split by the persistence layer before a Rule
// is built; the evaluator only ever sees the typed list. Adjustment, when
// present, is a flat amount prepended to an advanced rule's calculation
// chain.
type Rule struct {
	Field      Field            `json:"field" validate:"required"`
	Operator   Operator         `json:"operator" validate:"required"`
	Values     []string         `json:"values"`
	Adjustment *decimal.Decimal `json:"adjustment,omitempty"`
}

// Evaluator evaluates rules against order snapshots. All methods fail closed:
// a malformed rule, an absent field, or an unparseable payload yields false
// (or the untouched base amount for calculation chains), never an error. The
// anomaly is recorded on the logger when one is configured.
type Evaluator struct {
	Log *zerolog.Logger
}

func (e Evaluator) logger() *zerolog.Logger {
	if e.Log != nil {
		return e.Log
	}
	nop := zerolog.Nop()
	return &nop
}

// Evaluate reports whether the order satisfies the rule.
func (e Evaluator) Evaluate(r Rule, o *order.Snapshot) bool {
	if o == nil {
		return false
	}
	switch r.Field.Category() {
	case CategoryNumeric:
		return e.evaluateNumeric(r, o)
	case CategoryString:
		return e.evaluateString(r, o)
	case CategorySKU:
		return e.evaluateSKU(r, o)
	default:
		e.logger().Warn().Str("field", string(r.Field)).Str("operator", string(r.Operator)).
			Msg("unhandled rule field")
		return false
	}
}

func (e Evaluator) evaluateNumeric(r Rule, o *order.Snapshot) bool {
	fieldValue, ok := numericFieldValue(r.Field, o)
	if !ok {
		e.logger().Warn().Str("field", string(r.Field)).Stringer("order_id", o.ID).
			Msg("numeric field missing on order")
		return false
	}
	if len(r.Values) == 0 {
		return false
	}
	value, err := decimal.NewFromString(strings.TrimSpace(r.Values[0]))
	if err != nil {
		e.logger().Error().Str("field", string(r.Field)).Str("value", r.Values[0]).
			Msg("non-numeric rule value")
		return false
	}
	switch r.Operator {
	case OpGT:
		return fieldValue.GreaterThan(value)
	case OpLT:
		return fieldValue.LessThan(value)
	case OpEQ:
		return fieldValue.Equal(value)
	case OpNE:
		return !fieldValue.Equal(value)
	case OpGE:
		return fieldValue.GreaterThanOrEqual(value)
	case OpLE:
		return fieldValue.LessThanOrEqual(value)
	default:
		e.logger().Warn().Str("field", string(r.Field)).Str("operator", string(r.Operator)).
			Msg("unhandled numeric operator")
		return false
	}
}

func numericFieldValue(f Field, o *order.Snapshot) (decimal.Decimal, bool) {
	switch f {
	case FieldWeightLb:
		return o.Weight()
	case FieldVolumeCuFt:
		return o.Volume()
	case FieldLineItems:
		if o.LineItems == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(*o.LineItems), true
	case FieldTotalItemQty:
		qty, ok := o.Quantity()
		if !ok {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(qty), true
	case FieldPackages:
		if o.Packages == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(*o.Packages), true
	case FieldSKUCount:
		return decimal.NewFromInt(int64(len(o.SKUQuantities()))), true
	default:
		return decimal.Decimal{}, false
	}
}

func (e Evaluator) evaluateString(r Rule, o *order.Snapshot) bool {
	fieldValue := stringFieldValue(r.Field, o)
	switch r.Operator {
	case OpEQ:
		return len(r.Values) > 0 && fieldValue == r.Values[0]
	case OpNE:
		return len(r.Values) > 0 && fieldValue != r.Values[0]
	case OpIn:
		for _, v := range r.Values {
			if fieldValue == v {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, v := range r.Values {
			if fieldValue == v {
				return false
			}
		}
		return true
	case OpContains:
		for _, v := range r.Values {
			if v != "" && strings.Contains(fieldValue, v) {
				return true
			}
		}
		return false
	case OpNotContains:
		for _, v := range r.Values {
			if v != "" && strings.Contains(fieldValue, v) {
				return false
			}
		}
		return true
	case OpStartsWith:
		for _, v := range r.Values {
			if strings.HasPrefix(fieldValue, v) {
				return true
			}
		}
		return false
	case OpEndsWith:
		for _, v := range r.Values {
			if strings.HasSuffix(fieldValue, v) {
				return true
			}
		}
		return false
	default:
		e.logger().Warn().Str("field", string(r.Field)).Str("operator", string(r.Operator)).
			Msg("unhandled string operator")
		return false
	}
}

func stringFieldValue(f Field, o *order.Snapshot) string {
	switch f {
	case FieldReferenceNumber:
		return o.ReferenceNumber
	case FieldShipToName:
		return o.ShipToName
	case FieldShipToCompany:
		return o.ShipToCompany
	case FieldShipToCity:
		return o.ShipToCity
	case FieldShipToState:
		return o.ShipToState
	case FieldShipToCountry:
		return o.ShipToCountry
	case FieldCarrier:
		return o.Carrier
	case FieldNotes:
		return o.Notes
	default:
		// sku_name has no single order-level value; absent coerces to empty.
		return ""
	}
}

// evaluateSKU compares the rule's SKU list against the order's parsed SKU
// set. A missing or unparseable payload fails closed for every operator. A
// payload that parses to an empty set keeps natural set semantics: the
// negated operators hold vacuously, while the subset operators are false
// because an empty order proves nothing about its contents.
func (e Evaluator) evaluateSKU(r Rule, o *order.Snapshot) bool {
	if o.SKUData == nil {
		e.logger().Debug().Stringer("order_id", o.ID).Msg("no sku payload on order")
		return false
	}
	entries, err := order.DecodeSKUPayload(o.SKUData)
	if err != nil {
		e.logger().Warn().Err(err).Stringer("order_id", o.ID).Msg("unparseable sku payload")
		return false
	}
	quantities := order.ParseSKUQuantities(entries)
	orderSet := make(map[string]struct{}, len(quantities))
	for sku := range quantities {
		orderSet[sku] = struct{}{}
	}
	ruleSet := make(map[string]struct{}, len(r.Values))
	for _, v := range r.Values {
		if sku := order.NormalizeSKU(v); sku != "" {
			ruleSet[sku] = struct{}{}
		}
	}

	switch r.Operator {
	case OpContains:
		for sku := range ruleSet {
			if _, ok := orderSet[sku]; ok {
				return true
			}
		}
		return false
	case OpNotContains:
		for sku := range ruleSet {
			if _, ok := orderSet[sku]; ok {
				return false
			}
		}
		return true
	case OpIn, OpOnlyContains:
		// Order SKUs must form a non-empty subset of the rule's allow-list.
		if len(orderSet) == 0 {
			return false
		}
		for sku := range orderSet {
			if _, ok := ruleSet[sku]; !ok {
				return false
			}
		}
		return true
	case OpNotIn:
		for sku := range orderSet {
			if _, ok := ruleSet[sku]; ok {
				return false
			}
		}
		return true
	default:
		e.logger().Warn().Str("operator", string(r.Operator)).Msg("unhandled sku operator")
		return false
	}
}
