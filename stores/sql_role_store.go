package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/identra/authz"
)

// SQLRoleStore persists roles, the permission catalog, role grants and user
// assignments in SQL (squealx). It implements authz.RoleRepository.
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r authz.Role) error {
	q := `INSERT INTO roles(id, tenant_id, name, is_active, is_system, created_at) VALUES(:id, :tenant_id, :name, :is_active, :is_system, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         r.ID,
		"tenant_id":  r.TenantID,
		"name":       r.Name,
		"is_active":  boolToInt(r.IsActive),
		"is_system":  boolToInt(r.IsSystem),
		"created_at": time.Now().UTC(),
	})
	return err
}

func (s *SQLRoleStore) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	q := `UPDATE roles SET is_active = :is_active WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": roleID, "is_active": boolToInt(active)})
	return err
}

func (s *SQLRoleStore) CreatePermission(ctx context.Context, p authz.Permission) error {
	q := `INSERT INTO permissions(id, code, resource, action, is_active) VALUES(:id, :code, :resource, :action, :is_active)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":        p.ID,
		"code":      p.Code,
		"resource":  p.Resource,
		"action":    p.Action,
		"is_active": boolToInt(p.IsActive),
	})
	return err
}

func (s *SQLRoleStore) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	q := `INSERT INTO role_permissions(role_id, permission_id) VALUES(:role_id, :permission_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission_id": permissionID})
	return err
}

func (s *SQLRoleStore) Assign(ctx context.Context, a authz.RoleAssignment) error {
	q := `INSERT INTO user_roles(user_id, tenant_id, role_id, expires_at, created_at) VALUES(:user_id, :tenant_id, :role_id, :expires_at, :created_at)`
	var expires any
	if a.ExpiresAt != nil {
		expires = *a.ExpiresAt
	}
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":    a.UserID,
		"tenant_id":  a.TenantID,
		"role_id":    a.RoleID,
		"expires_at": expires,
		"created_at": time.Now().UTC(),
	})
	return err
}

func (s *SQLRoleStore) Unassign(ctx context.Context, userID, tenantID, roleID string) error {
	q := `DELETE FROM user_roles WHERE user_id = :user_id AND tenant_id = :tenant_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID, "role_id": roleID})
	return err
}

// ListActiveRoleAssignments returns the user's assignments in the tenant
// whose role is still active. Expiry is not filtered here; the evaluator
// applies its own cutoff instant.
func (s *SQLRoleStore) ListActiveRoleAssignments(ctx context.Context, userID, tenantID string) ([]authz.RoleAssignment, error) {
	q := `SELECT ur.user_id, ur.tenant_id, ur.role_id, ur.expires_at, ur.created_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.is_active = 1
		WHERE ur.user_id = :user_id AND ur.tenant_id = :tenant_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]authz.RoleAssignment, 0)
	for r.Next() {
		var a authz.RoleAssignment
		var expiresRaw, createdRaw any
		if err := r.Scan(&a.UserID, &a.TenantID, &a.RoleID, &expiresRaw, &createdRaw); err != nil {
			return nil, err
		}
		a.ExpiresAt = scanNullableTime(expiresRaw)
		if t := scanNullableTime(createdRaw); t != nil {
			a.CreatedAt = *t
		}
		out = append(out, a)
	}
	return out, r.Err()
}

// ListActivePermissions returns the active permissions granted to a role.
func (s *SQLRoleStore) ListActivePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	q := `SELECT p.id, p.code, p.resource, p.action, p.is_active
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id AND p.is_active = 1
		WHERE rp.role_id = :role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]authz.Permission, 0)
	for r.Next() {
		var p authz.Permission
		var resource, action any
		var active int
		if err := r.Scan(&p.ID, &p.Code, &resource, &action, &active); err != nil {
			return nil, err
		}
		p.Resource = textOrEmpty(resource)
		p.Action = textOrEmpty(action)
		p.IsActive = active != 0
		out = append(out, p)
	}
	return out, r.Err()
}

func textOrEmpty(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
