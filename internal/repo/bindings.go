package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/warebill/billing/internal/billing"
	"github.com/warebill/billing/internal/rules"
)

var _ billing.BindingSource = (*BindingStore)(nil)

// BindingStore hydrates a customer's service bindings together with their
// rule groups. Stored rules are validated on the way in; a rule that fails
// validation is logged and dropped so one bad row cannot poison a report
// run.
type BindingStore struct {
	Pool *pgxpool.Pool
	Log  *zerolog.Logger
}

func (s *BindingStore) logger() *zerolog.Logger {
	if s != nil && s.Log != nil {
		return s.Log
	}
	nop := zerolog.Nop()
	return &nop
}

// ForCustomer implements billing.BindingSource.
func (s *BindingStore) ForCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Binding, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	bindings, err := s.fetchBindings(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(bindings))
	byID := make(map[uuid.UUID]*billing.Binding, len(bindings))
	for i := range bindings {
		ids = append(ids, bindings[i].ID)
		byID[bindings[i].ID] = &bindings[i]
	}
	if err := s.attachGroups(ctx, ids, byID); err != nil {
		return nil, err
	}
	return bindings, nil
}

func (s *BindingStore) fetchBindings(ctx context.Context, customerID uuid.UUID) ([]billing.Binding, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT cs.id, cs.customer_id, cs.unit_price::text, cs.restricted_skus,
       sv.id, sv.name, sv.charge_kind
FROM customer_services cs
JOIN services sv ON sv.id = cs.service_id
WHERE cs.customer_id = $1 AND cs.is_active
ORDER BY sv.name, cs.id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []billing.Binding
	for rows.Next() {
		var (
			b          billing.Binding
			price      *string
			restricted sql.NullString
			kind       string
		)
		if err := rows.Scan(&b.ID, &b.CustomerID, &price, &restricted,
			&b.Service.ID, &b.Service.Name, &kind); err != nil {
			return nil, err
		}
		if d := parseNullDecimal(price); d != nil {
			b.UnitPrice = *d
		}
		if restricted.Valid {
			b.RestrictedSKUs = splitMultiValue(restricted.String)
		}
		b.Service.ChargeKind = billing.ChargeKind(kind)
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func (s *BindingStore) attachGroups(ctx context.Context, bindingIDs []uuid.UUID, byID map[uuid.UUID]*billing.Binding) error {
	rows, err := s.Pool.Query(ctx, `
SELECT g.id, g.customer_service_id, g.logic_operator,
       r.field, r.operator, r.value, r.adjustment_amount::text,
       r.conditions, r.calculations
FROM rule_groups g
LEFT JOIN service_rules r ON r.group_id = g.id
WHERE g.customer_service_id = ANY($1)
ORDER BY g.customer_service_id, g.id, r.position, r.id`, bindingIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	type groupKey struct {
		bindingID uuid.UUID
		groupID   uuid.UUID
	}
	groupIndex := make(map[groupKey]int)

	for rows.Next() {
		var (
			groupID      uuid.UUID
			bindingID    uuid.UUID
			logic        string
			field        sql.NullString
			operator     sql.NullString
			rawValue     sql.NullString
			adjustment   *string
			conditions   []byte
			calculations []byte
		)
		if err := rows.Scan(&groupID, &bindingID, &logic,
			&field, &operator, &rawValue, &adjustment,
			&conditions, &calculations); err != nil {
			return err
		}
		binding, ok := byID[bindingID]
		if !ok {
			continue
		}
		key := groupKey{bindingID: bindingID, groupID: groupID}
		idx, ok := groupIndex[key]
		if !ok {
			binding.Groups = append(binding.Groups, rules.Group{Logic: rules.LogicOp(logic)})
			idx = len(binding.Groups) - 1
			groupIndex[key] = idx
		}
		if !field.Valid {
			// Group with no rules yet; it still applies to every order.
			continue
		}
		s.appendRule(&binding.Groups[idx], ruleRow{
			field:        field.String,
			operator:     operator.String,
			rawValue:     rawValue.String,
			adjustment:   adjustment,
			conditions:   conditions,
			calculations: calculations,
		})
	}
	return rows.Err()
}

type ruleRow struct {
	field        string
	operator     string
	rawValue     string
	adjustment   *string
	conditions   []byte
	calculations []byte
}

// appendRule hydrates one stored rule row into the group, dropping rows that
// fail validation.
func (s *BindingStore) appendRule(group *rules.Group, row ruleRow) {
	base := rules.Rule{
		Field:      rules.Field(row.field),
		Operator:   rules.Operator(row.operator),
		Values:     splitMultiValue(row.rawValue),
		Adjustment: parseNullDecimal(row.adjustment),
	}

	if len(row.conditions) == 0 && len(row.calculations) == 0 {
		if err := rules.ValidateRule(base); err != nil {
			s.logger().Warn().Err(err).Str("field", row.field).Str("operator", row.operator).
				Msg("dropping invalid stored rule")
			return
		}
		group.Rules = append(group.Rules, base)
		return
	}

	advanced := rules.AdvancedRule{Rule: base}
	if len(row.conditions) > 0 {
		if err := json.Unmarshal(row.conditions, &advanced.Conditions); err != nil {
			s.logger().Warn().Err(err).Str("field", row.field).
				Msg("dropping rule with malformed conditions")
			return
		}
	}
	if len(row.calculations) > 0 {
		if err := json.Unmarshal(row.calculations, &advanced.Calculations); err != nil {
			s.logger().Warn().Err(err).Str("field", row.field).
				Msg("dropping rule with malformed calculations")
			return
		}
	}
	if err := rules.ValidateAdvancedRule(advanced); err != nil {
		s.logger().Warn().Err(err).Str("field", row.field).Str("operator", row.operator).
			Msg("dropping invalid stored advanced rule")
		return
	}
	group.Advanced = append(group.Advanced, advanced)
}
