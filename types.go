package authz

import (
	"context"
	"time"
)

// Effect is the outcome of a matched policy.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
	// EffectNone means no policy fully matched: the policy layer has no
	// opinion. It is not a deny.
	EffectNone Effect = ""
)

// SubjectType scopes an ACL entry to a user or to a role.
type SubjectType string

const (
	SubjectUser SubjectType = "user"
	SubjectRole SubjectType = "role"
)

// Role is a named bundle of permission grants owned by one tenant.
// System roles are immutable in the administrative layer; to this package a
// system role behaves like any other role.
type Role struct {
	ID        string    `json:"id" yaml:"id"`
	TenantID  string    `json:"tenant_id" yaml:"tenant_id"`
	Name      string    `json:"name" yaml:"name"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	IsSystem  bool      `json:"is_system" yaml:"is_system"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// RoleAssignment links a principal to a role, optionally until ExpiresAt.
type RoleAssignment struct {
	UserID    string     `json:"user_id" yaml:"user_id"`
	TenantID  string     `json:"tenant_id" yaml:"tenant_id"`
	RoleID    string     `json:"role_id" yaml:"role_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"-"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
}

// Expired reports whether the assignment has lapsed. An expired assignment
// confers no permissions: it is absent, not merely inactive.
func (a *RoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Permission is a global catalog entry identified by a unique code such as
// "user:read". Resource and Action tag the code for dynamic lookup by the
// administrative layer; the engine matches on Code alone.
type Permission struct {
	ID       string `json:"id" yaml:"id"`
	Code     string `json:"code" yaml:"code"`
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Action   string `json:"action,omitempty" yaml:"action,omitempty"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// AttributeDefinition names a typed attribute principals may carry.
type AttributeDefinition struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"` // string, number, boolean, array
}

// PolicyRule is one condition of a policy: attribute ⟨operator⟩ value.
// All rules of a policy are AND-ed.
type PolicyRule struct {
	ID        string   `json:"id"`
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     Value    `json:"value"`
}

// Policy is a tenant-scoped prioritized rule set yielding an explicit effect.
type Policy struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Name      string       `json:"name"`
	Effect    Effect       `json:"effect"`
	Priority  int          `json:"priority"` // higher evaluated first
	IsActive  bool         `json:"is_active"`
	Rules     []PolicyRule `json:"rules"`
	CreatedAt time.Time    `json:"created_at"`
}

// AclEntry binds a subject to a resource type (and optionally one instance)
// with a single permission string. An empty ResourceID means the entry is not
// scoped to a specific instance.
type AclEntry struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	SubjectType  SubjectType `json:"subject_type"`
	SubjectID    string      `json:"subject_id"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Permission   string      `json:"permission"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AclQuery describes one ACL lookup. An empty ResourceID leaves the
// resource-id column unfiltered, so a global check can match entries that
// were created for a specific instance. That mirrors the historical query
// behavior; see the evaluator tests for both readings.
type AclQuery struct {
	SubjectType  SubjectType
	SubjectID    string
	TenantID     string
	ResourceType string
	ResourceID   string
	Permission   string
}

// RoleRepository supplies the principal's currently valid role grants.
// ListActiveRoleAssignments returns assignments scoped to the tenant whose
// role is active; expiry filtering stays with the caller so the cutoff
// instant is the decision time. ListActivePermissions returns only grants
// whose permission is active.
type RoleRepository interface {
	ListActiveRoleAssignments(ctx context.Context, userID, tenantID string) ([]RoleAssignment, error)
	ListActivePermissions(ctx context.Context, roleID string) ([]Permission, error)
}

// PolicyRepository supplies a tenant's active policies with their rules,
// ordered by priority descending; ties keep insertion order.
type PolicyRepository interface {
	ListActivePolicies(ctx context.Context, tenantID string) ([]Policy, error)
}

// AttributeRepository supplies the attribute values currently assigned to a
// principal, keyed by attribute name.
type AttributeRepository interface {
	ListAttributeValues(ctx context.Context, userID string) (map[string]Value, error)
}

// AclRepository looks up explicit resource grants. A nil entry with a nil
// error means no entry matched; that is a normal negative outcome, never an
// error.
type AclRepository interface {
	FindEntry(ctx context.Context, q AclQuery) (*AclEntry, error)
}

// Decision is the explainable form of a verdict.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	MatchedBy string    `json:"matched_by"` // policy id, role id, acl entry id
	Trace     []string  `json:"trace,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AccessRequest carries everything the engine needs for one verdict. The
// caller has already authenticated the principal and resolved its role ids;
// Attributes are overrides merged over the stored attribute values, override
// winning on key collision.
type AccessRequest struct {
	UserID         string           `json:"user_id"`
	TenantID       string           `json:"tenant_id"`
	RoleIDs        []string         `json:"role_ids,omitempty"`
	Attributes     map[string]Value `json:"attributes,omitempty"`
	PermissionCode string           `json:"permission_code,omitempty"`
	ResourceType   string           `json:"resource_type,omitempty"`
	ResourceID     string           `json:"resource_id,omitempty"`
	Action         string           `json:"action,omitempty"`
}
