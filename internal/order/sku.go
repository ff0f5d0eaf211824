package order

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SKUEntry is one line of an order's SKU payload as stored upstream.
// Quantity arrives as either a JSON number or a numeric string.
type SKUEntry struct {
	SKU      any `json:"sku"`
	Quantity any `json:"quantity"`
}

// NormalizeSKU strips all whitespace (including interior runs) and upper-cases
// the SKU. Empty or nil-ish input normalizes to the empty string. The function
// is idempotent.
func NormalizeSKU(sku string) string {
	if sku == "" {
		return ""
	}
	return strings.ToUpper(strings.Join(strings.Fields(sku), ""))
}

// DecodeSKUPayload turns the heterogeneous SKU payload formats seen in order
// records into a flat entry list. Accepted inputs: a JSON-encoded string or
// byte slice of [{"sku":..., "quantity":...}], an already-decoded []SKUEntry,
// or a sku -> quantity map. A payload that is not one of these shapes is a
// hard decode error; per-entry problems are left for the caller to filter.
func DecodeSKUPayload(raw any) ([]SKUEntry, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []SKUEntry:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return decodeJSONEntries([]byte(v))
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return decodeJSONEntries(v)
	case json.RawMessage:
		if len(v) == 0 {
			return nil, nil
		}
		return decodeJSONEntries([]byte(v))
	case map[string]any:
		entries := make([]SKUEntry, 0, len(v))
		for sku, qty := range v {
			entries = append(entries, SKUEntry{SKU: sku, Quantity: qty})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unsupported sku payload type %T", raw)
	}
}

func decodeJSONEntries(data []byte) ([]SKUEntry, error) {
	var entries []SKUEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	var mapped map[string]any
	if err := json.Unmarshal(data, &mapped); err != nil {
		return nil, fmt.Errorf("decode sku payload: %w", err)
	}
	entries = make([]SKUEntry, 0, len(mapped))
	for sku, qty := range mapped {
		entries = append(entries, SKUEntry{SKU: sku, Quantity: qty})
	}
	return entries, nil
}

// ParseSKUQuantities canonicalizes an order's SKU payload into a normalized
// SKU -> quantity map. Malformed entries, non-positive quantities, and SKUs
// that normalize to the empty string are dropped. Quantities for the same
// normalized SKU are summed. A totally malformed payload yields an empty map,
// never an error; callers treat an empty map as "no billable SKUs".
func ParseSKUQuantities(raw any) map[string]decimal.Decimal {
	entries, err := DecodeSKUPayload(raw)
	if err != nil {
		return map[string]decimal.Decimal{}
	}
	out := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		sku := NormalizeSKU(coerceString(entry.SKU))
		if sku == "" {
			continue
		}
		qty, ok := coerceDecimal(entry.Quantity)
		if !ok || qty.Sign() <= 0 {
			continue
		}
		out[sku] = out[sku].Add(qty)
	}
	return out
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch q := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return q, true
	case float64:
		return decimal.NewFromFloat(q), true
	case int:
		return decimal.NewFromInt(int64(q)), true
	case int64:
		return decimal.NewFromInt(q), true
	case json.Number:
		d, err := decimal.NewFromString(q.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(q))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
