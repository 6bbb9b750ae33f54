package authz

import (
	"context"
	"time"
)

// RoleEvaluator answers whether a principal holds a permission code through
// any of its currently valid role assignments. It is a pure existence check:
// assignments × roles × permission grants, OR-reduced, so scan order never
// changes the verdict.
type RoleEvaluator struct {
	roles RoleRepository
}

func NewRoleEvaluator(roles RoleRepository) *RoleEvaluator {
	return &RoleEvaluator{roles: roles}
}

// HasPermission reports whether userID holds permissionCode in tenantID.
// Assignments whose role is inactive never reach us (repository contract);
// assignments past their expiry contribute nothing, and deactivated
// permissions are treated as not granted even while still linked.
func (e *RoleEvaluator) HasPermission(ctx context.Context, userID, tenantID, permissionCode string) (bool, error) {
	assignments, err := e.roles.ListActiveRoleAssignments(ctx, userID, tenantID)
	if err != nil {
		return false, readErr(ctx, "list role assignments", err)
	}
	now := time.Now()
	for i := range assignments {
		if assignments[i].Expired(now) {
			continue
		}
		perms, err := e.roles.ListActivePermissions(ctx, assignments[i].RoleID)
		if err != nil {
			return false, readErr(ctx, "list role permissions", err)
		}
		for _, p := range perms {
			if !p.IsActive {
				continue
			}
			if p.Code == permissionCode {
				return true, nil
			}
		}
	}
	return false, nil
}

// ResolveRoleIDs returns the role ids behind the principal's unexpired
// assignments. The engine itself expects the caller to have resolved role
// ids already; this helper is for callers that have not.
func (e *RoleEvaluator) ResolveRoleIDs(ctx context.Context, userID, tenantID string) ([]string, error) {
	assignments, err := e.roles.ListActiveRoleAssignments(ctx, userID, tenantID)
	if err != nil {
		return nil, readErr(ctx, "list role assignments", err)
	}
	now := time.Now()
	ids := make([]string, 0, len(assignments))
	for i := range assignments {
		if assignments[i].Expired(now) {
			continue
		}
		ids = append(ids, assignments[i].RoleID)
	}
	return ids, nil
}
