package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/identra/authz"
)

// SQLAttributeStore persists attribute definitions and per-user values in
// SQL (squealx). It implements authz.AttributeRepository. Values are stored
// as their JSON encoding, so every value kind round-trips.
type SQLAttributeStore struct {
	db *squealx.DB
}

func NewSQLAttributeStore(db *squealx.DB) *SQLAttributeStore {
	return &SQLAttributeStore{db: db}
}

func (s *SQLAttributeStore) CreateDefinition(ctx context.Context, d authz.AttributeDefinition) error {
	q := `INSERT INTO attribute_definitions(id, tenant_id, name, type) VALUES(:id, :tenant_id, :name, :type)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":        d.ID,
		"tenant_id": d.TenantID,
		"name":      d.Name,
		"type":      d.Type,
	})
	return err
}

func (s *SQLAttributeStore) SetValue(ctx context.Context, userID, name string, v authz.Value) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	q := `INSERT INTO attribute_values(user_id, name, value) VALUES(:user_id, :name, :value)
		ON CONFLICT(user_id, name) DO UPDATE SET value = :value`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id": userID,
		"name":    name,
		"value":   string(b),
	})
	return err
}

func (s *SQLAttributeStore) DeleteValue(ctx context.Context, userID, name string) error {
	q := `DELETE FROM attribute_values WHERE user_id = :user_id AND name = :name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "name": name})
	return err
}

func (s *SQLAttributeStore) ListAttributeValues(ctx context.Context, userID string) (map[string]authz.Value, error) {
	q := `SELECT name, value FROM attribute_values WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make(map[string]authz.Value)
	for r.Next() {
		var name, raw string
		if err := r.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var v authz.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, r.Err()
}
