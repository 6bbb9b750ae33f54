package authz

import (
	"context"
	"testing"
)

const fixtureYAML = `
tenants:
  - id: tenant-1
    name: Acme
permissions:
  - id: perm-read
    code: doc:read
    is_active: true
  - id: perm-edit
    code: doc:edit
    is_active: true
roles:
  - id: role-editor
    tenant_id: tenant-1
    name: editor
    is_active: true
    permissions: [doc:read, doc:edit]
assignments:
  - user_id: alice
    tenant_id: tenant-1
    role_id: role-editor
  - user_id: bob
    tenant_id: tenant-1
    role_id: role-editor
    expires_at: "2020-01-01T00:00:00Z"
attributes:
  - user_id: alice
    name: department
    value: engineering
  - user_id: alice
    name: level
    value: 4
policies:
  - id: pol-deny-interns
    tenant_id: tenant-1
    name: deny interns
    effect: DENY
    priority: 50
    rules:
      - attribute: level
        operator: lte
        value: 1
acls:
  - id: acl-1
    tenant_id: tenant-1
    subject_type: user
    subject_id: carol
    resource_type: report
    resource_id: rep-1
    permission: read
`

func TestLoadConfigYAMLAndApply(t *testing.T) {
	ctx := context.Background()
	cfg, err := LoadConfigYAML([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b := NewMemoryBackend()
	if err := cfg.Apply(ctx, b); err != nil {
		t.Fatalf("apply: %v", err)
	}
	eng := b.Engine()
	defer eng.Close()

	ok, err := eng.CanAccess(ctx, AccessRequest{UserID: "alice", TenantID: "tenant-1", PermissionCode: "doc:edit"})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if !ok {
		t.Fatalf("seeded role grant missing")
	}

	// bob's assignment expired in 2020
	ok, err = eng.CanAccess(ctx, AccessRequest{UserID: "bob", TenantID: "tenant-1", PermissionCode: "doc:edit"})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if ok {
		t.Fatalf("expired seeded assignment granted access")
	}

	// seeded acl
	ok, err = eng.CanAccess(ctx, AccessRequest{
		UserID: "carol", TenantID: "tenant-1", ResourceType: "report", ResourceID: "rep-1", Action: "read",
	})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if !ok {
		t.Fatalf("seeded acl grant missing")
	}

	// seeded deny policy trips on an override
	ok, err = eng.CanAccess(ctx, AccessRequest{
		UserID: "alice", TenantID: "tenant-1", PermissionCode: "doc:edit",
		Attributes: map[string]Value{"level": NumberValue(1)},
	})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if ok {
		t.Fatalf("seeded deny policy not applied")
	}
}

func TestConfigValidateRejectsBadReferences(t *testing.T) {
	cfg := &Config{
		Permissions: []Permission{{ID: "perm-1", Code: "doc:read", IsActive: true}},
		Roles: []RoleConfig{{
			Role:        Role{ID: "role-1", TenantID: "tenant-1", Name: "r", IsActive: true},
			Permissions: []string{"doc:write"},
		}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown permission code accepted")
	}

	cfg = &Config{
		Policies: []PolicyConfig{{ID: "pol-1", TenantID: "tenant-1", Effect: "MAYBE",
			Rules: []PolicyRuleConfig{{Attribute: "a", Operator: "eq", Value: "b"}}}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("invalid effect accepted")
	}

	cfg = &Config{
		Assignments: []AssignmentConfig{{UserID: "u", TenantID: "t", RoleID: "missing"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("assignment to unknown role accepted")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg, err := LoadConfigYAML([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	jsonBytes, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	cfg2, err := LoadConfigJSON(jsonBytes)
	if err != nil {
		t.Fatalf("reload json: %v", err)
	}
	if len(cfg2.Roles) != len(cfg.Roles) || len(cfg2.Policies) != len(cfg.Policies) || len(cfg2.ACLs) != len(cfg.ACLs) {
		t.Fatalf("round trip lost items")
	}
	if err := cfg2.Validate(); err != nil {
		t.Fatalf("round-tripped config invalid: %v", err)
	}
}
