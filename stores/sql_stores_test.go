package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/identra/authz"
)

func openTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLRoleStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSQLRoleStore(db)

	if err := store.CreateRole(ctx, authz.Role{ID: "role-1", TenantID: "tenant-1", Name: "editor", IsActive: true}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := store.CreateRole(ctx, authz.Role{ID: "role-off", TenantID: "tenant-1", Name: "legacy", IsActive: false}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := store.CreatePermission(ctx, authz.Permission{ID: "perm-1", Code: "doc:edit", IsActive: true}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	if err := store.CreatePermission(ctx, authz.Permission{ID: "perm-off", Code: "doc:legacy", IsActive: false}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	if err := store.GrantPermission(ctx, "role-1", "perm-1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := store.GrantPermission(ctx, "role-1", "perm-off"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	expires := time.Now().Add(time.Hour).UTC()
	if err := store.Assign(ctx, authz.RoleAssignment{UserID: "alice", TenantID: "tenant-1", RoleID: "role-1", ExpiresAt: &expires}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.Assign(ctx, authz.RoleAssignment{UserID: "alice", TenantID: "tenant-1", RoleID: "role-off"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	assignments, err := store.ListActiveRoleAssignments(ctx, "alice", "tenant-1")
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].RoleID != "role-1" {
		t.Fatalf("want only role-1 (inactive role filtered), got %+v", assignments)
	}
	if assignments[0].ExpiresAt == nil {
		t.Fatalf("expires_at lost in round trip")
	}

	perms, err := store.ListActivePermissions(ctx, "role-1")
	if err != nil {
		t.Fatalf("list permissions: %v", err)
	}
	if len(perms) != 1 || perms[0].Code != "doc:edit" {
		t.Fatalf("want only doc:edit (inactive permission filtered), got %+v", perms)
	}

	if err := store.Unassign(ctx, "alice", "tenant-1", "role-1"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	assignments, _ = store.ListActiveRoleAssignments(ctx, "alice", "tenant-1")
	if len(assignments) != 0 {
		t.Fatalf("unassign left %d assignments", len(assignments))
	}
}

func TestSQLPolicyStoreOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSQLPolicyStore(db)

	mk := func(id string, priority int, effect authz.Effect) authz.Policy {
		return authz.Policy{
			ID: id, TenantID: "tenant-1", Name: id, Effect: effect, Priority: priority, IsActive: true,
			Rules: []authz.PolicyRule{{ID: id + "-r1", Attribute: "department", Operator: authz.OpEq, Value: authz.StringValue("engineering")}},
		}
	}
	if err := store.CreatePolicy(ctx, mk("pol-low", 1, authz.EffectAllow)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreatePolicy(ctx, mk("pol-high", 9, authz.EffectDeny)); err != nil {
		t.Fatalf("create: %v", err)
	}
	inactive := mk("pol-off", 99, authz.EffectDeny)
	inactive.IsActive = false
	if err := store.CreatePolicy(ctx, inactive); err != nil {
		t.Fatalf("create: %v", err)
	}

	policies, err := store.ListActivePolicies(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("want 2 active policies, got %d", len(policies))
	}
	if policies[0].ID != "pol-high" || policies[1].ID != "pol-low" {
		t.Fatalf("priority order wrong: %s, %s", policies[0].ID, policies[1].ID)
	}
	if len(policies[0].Rules) != 1 || policies[0].Rules[0].Attribute != "department" {
		t.Fatalf("rules lost in round trip: %+v", policies[0].Rules)
	}
	want := authz.StringValue("engineering")
	if !policies[0].Rules[0].Value.Equal(want) {
		t.Fatalf("rule value changed: %s", policies[0].Rules[0].Value)
	}
}

func TestSQLAttributeStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSQLAttributeStore(db)

	if err := store.SetValue(ctx, "alice", "department", authz.StringValue("engineering")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetValue(ctx, "alice", "tags", authz.ArrayValue(authz.StringValue("a"), authz.StringValue("b"))); err != nil {
		t.Fatalf("set array: %v", err)
	}
	// upsert
	if err := store.SetValue(ctx, "alice", "department", authz.StringValue("sales")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	vals, err := store.ListAttributeValues(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(vals) != 2 {
		t.Fatalf("want 2 values, got %d", len(vals))
	}
	if s, _ := vals["department"].Text(); s != "sales" {
		t.Fatalf("upsert did not replace: %v", vals["department"])
	}
	if items, ok := vals["tags"].Array(); !ok || len(items) != 2 {
		t.Fatalf("array value lost: %v", vals["tags"])
	}

	if err := store.DeleteValue(ctx, "alice", "tags"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	vals, _ = store.ListAttributeValues(ctx, "alice")
	if _, ok := vals["tags"]; ok {
		t.Fatalf("deleted value still listed")
	}
}

func TestSQLAclStoreFindEntry(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSQLAclStore(db)

	if err := store.Grant(ctx, authz.AclEntry{
		ID: "acl-1", TenantID: "tenant-1", SubjectType: authz.SubjectUser, SubjectID: "alice",
		ResourceType: "document", ResourceID: "doc-1", Permission: "read",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := store.Grant(ctx, authz.AclEntry{
		ID: "acl-wide", TenantID: "tenant-1", SubjectType: authz.SubjectRole, SubjectID: "role-auditor",
		ResourceType: "report", Permission: "read",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	entry, err := store.FindEntry(ctx, authz.AclQuery{
		SubjectType: authz.SubjectUser, SubjectID: "alice", TenantID: "tenant-1",
		ResourceType: "document", ResourceID: "doc-1", Permission: "read",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry == nil || entry.ID != "acl-1" {
		t.Fatalf("want acl-1, got %+v", entry)
	}

	// unscoped query matches instance-scoped entry
	entry, err = store.FindEntry(ctx, authz.AclQuery{
		SubjectType: authz.SubjectUser, SubjectID: "alice", TenantID: "tenant-1",
		ResourceType: "document", Permission: "read",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry == nil {
		t.Fatalf("type-level query should match instance grant")
	}

	// type-wide entry matches any instance
	entry, err = store.FindEntry(ctx, authz.AclQuery{
		SubjectType: authz.SubjectRole, SubjectID: "role-auditor", TenantID: "tenant-1",
		ResourceType: "report", ResourceID: "rep-9", Permission: "read",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry == nil || entry.ID != "acl-wide" {
		t.Fatalf("type-wide grant should match, got %+v", entry)
	}

	// no match is nil, nil
	entry, err = store.FindEntry(ctx, authz.AclQuery{
		SubjectType: authz.SubjectUser, SubjectID: "alice", TenantID: "tenant-1",
		ResourceType: "document", ResourceID: "doc-1", Permission: "delete",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry != nil {
		t.Fatalf("wrong permission matched: %+v", entry)
	}

	if err := store.Revoke(ctx, "acl-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	entry, _ = store.FindEntry(ctx, authz.AclQuery{
		SubjectType: authz.SubjectUser, SubjectID: "alice", TenantID: "tenant-1",
		ResourceType: "document", ResourceID: "doc-1", Permission: "read",
	})
	if entry != nil {
		t.Fatalf("revoked entry still found")
	}
}

func TestSQLAuditStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSQLAuditStore(db)

	entry := &authz.AuditEntry{
		ID:        "evt-1",
		Timestamp: time.Now().UTC(),
		TenantID:  "tenant-1",
		UserID:    "alice",
		TraceID:   "trace-abc",
		Request: authz.AccessRequest{
			UserID: "alice", TenantID: "tenant-1", PermissionCode: "doc:edit",
		},
		Decision: &authz.Decision{Allowed: true, Reason: "rbac grant", MatchedBy: "doc:edit"},
	}
	if err := store.LogDecision(ctx, entry); err != nil {
		t.Fatalf("log decision: %v", err)
	}

	logs, err := store.GetAccessLog(ctx, authz.AuditFilter{TenantID: "tenant-1", UserID: "alice", Limit: 10})
	if err != nil {
		t.Fatalf("get access log: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("want 1 entry, got %d", len(logs))
	}
	got := logs[0]
	if got.TraceID != "trace-abc" {
		t.Fatalf("trace id lost: %+v", got)
	}
	if got.Request.PermissionCode != "doc:edit" {
		t.Fatalf("request lost: %+v", got.Request)
	}
	if got.Decision == nil || !got.Decision.Allowed || got.Decision.Reason != "rbac grant" {
		t.Fatalf("decision lost: %+v", got.Decision)
	}

	logs, err = store.GetAccessLog(ctx, authz.AuditFilter{PermissionCode: "doc:delete"})
	if err != nil {
		t.Fatalf("get access log: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("permission filter matched wrong entries")
	}
}

func TestEngineOverSQLStores(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	roles := NewSQLRoleStore(db)
	policies := NewSQLPolicyStore(db)
	attrs := NewSQLAttributeStore(db)
	acls := NewSQLAclStore(db)

	if err := roles.CreateRole(ctx, authz.Role{ID: "role-1", TenantID: "tenant-1", Name: "editor", IsActive: true}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := roles.CreatePermission(ctx, authz.Permission{ID: "perm-1", Code: "doc:edit", IsActive: true}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	if err := roles.GrantPermission(ctx, "role-1", "perm-1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := roles.Assign(ctx, authz.RoleAssignment{UserID: "alice", TenantID: "tenant-1", RoleID: "role-1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := attrs.SetValue(ctx, "alice", "department", authz.StringValue("engineering")); err != nil {
		t.Fatalf("set attr: %v", err)
	}
	if err := policies.CreatePolicy(ctx, authz.Policy{
		ID: "pol-deny-sales", TenantID: "tenant-1", Name: "deny sales", Effect: authz.EffectDeny, Priority: 10, IsActive: true,
		Rules: []authz.PolicyRule{{ID: "r1", Attribute: "department", Operator: authz.OpEq, Value: authz.StringValue("sales")}},
	}); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	eng := authz.NewEngine(roles, policies, attrs, acls)
	defer eng.Close()

	ok, err := eng.CanAccess(ctx, authz.AccessRequest{UserID: "alice", TenantID: "tenant-1", PermissionCode: "doc:edit"})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if !ok {
		t.Fatalf("expected rbac grant over sql stores")
	}

	ok, err = eng.CanAccess(ctx, authz.AccessRequest{
		UserID: "alice", TenantID: "tenant-1", PermissionCode: "doc:edit",
		Attributes: map[string]authz.Value{"department": authz.StringValue("sales")},
	})
	if err != nil {
		t.Fatalf("can access: %v", err)
	}
	if ok {
		t.Fatalf("deny policy not applied over sql stores")
	}
}
