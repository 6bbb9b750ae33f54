package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/identra/authz"
)

// SQLPolicyStore persists policies and their rules in SQL (squealx). It
// implements authz.PolicyRepository.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

// CreatePolicy inserts the policy header and all of its rules. Rule values
// are stored as their JSON encoding so arrays round-trip unchanged.
func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p authz.Policy) error {
	q := `INSERT INTO policies(id, tenant_id, name, effect, priority, is_active, created_at) VALUES(:id, :tenant_id, :name, :effect, :priority, :is_active, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         p.ID,
		"tenant_id":  p.TenantID,
		"name":       p.Name,
		"effect":     string(p.Effect),
		"priority":   p.Priority,
		"is_active":  boolToInt(p.IsActive),
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	rq := `INSERT INTO policy_rules(id, policy_id, attribute, operator, value, seq) VALUES(:id, :policy_id, :attribute, :operator, :value, :seq)`
	for i, rule := range p.Rules {
		val, err := json.Marshal(rule.Value)
		if err != nil {
			return err
		}
		if _, err := s.db.NamedExecContext(ctx, rq, map[string]any{
			"id":        rule.ID,
			"policy_id": p.ID,
			"attribute": rule.Attribute,
			"operator":  string(rule.Operator),
			"value":     string(val),
			"seq":       i,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLPolicyStore) SetPolicyActive(ctx context.Context, policyID string, active bool) error {
	q := `UPDATE policies SET is_active = :is_active WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": policyID, "is_active": boolToInt(active)})
	return err
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, policyID string) error {
	if _, err := s.db.NamedExecContext(ctx, `DELETE FROM policy_rules WHERE policy_id = :id`, map[string]any{"id": policyID}); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM policies WHERE id = :id`, map[string]any{"id": policyID})
	return err
}

// ListActivePolicies returns the tenant's active policies ordered by
// priority descending; equal priorities keep creation order so evaluation
// is deterministic.
func (s *SQLPolicyStore) ListActivePolicies(ctx context.Context, tenantID string) ([]authz.Policy, error) {
	q := `SELECT id, tenant_id, name, effect, priority, created_at
		FROM policies
		WHERE tenant_id = :tenant_id AND is_active = 1
		ORDER BY priority DESC, created_at ASC, id ASC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	out := make([]authz.Policy, 0)
	for r.Next() {
		var p authz.Policy
		var effect string
		var createdRaw any
		if err := r.Scan(&p.ID, &p.TenantID, &p.Name, &effect, &p.Priority, &createdRaw); err != nil {
			r.Close()
			return nil, err
		}
		p.Effect = authz.Effect(effect)
		p.IsActive = true
		if t := scanNullableTime(createdRaw); t != nil {
			p.CreatedAt = *t
		}
		out = append(out, p)
	}
	if err := r.Err(); err != nil {
		r.Close()
		return nil, err
	}
	r.Close()
	for i := range out {
		rules, err := s.listRules(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Rules = rules
	}
	return out, nil
}

func (s *SQLPolicyStore) listRules(ctx context.Context, policyID string) ([]authz.PolicyRule, error) {
	q := `SELECT id, attribute, operator, value FROM policy_rules WHERE policy_id = :policy_id ORDER BY seq ASC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"policy_id": policyID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]authz.PolicyRule, 0)
	for r.Next() {
		var rule authz.PolicyRule
		var op, val string
		if err := r.Scan(&rule.ID, &rule.Attribute, &op, &val); err != nil {
			return nil, err
		}
		rule.Operator = authz.Operator(op)
		if err := json.Unmarshal([]byte(val), &rule.Value); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, r.Err()
}
