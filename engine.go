package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/identra/authz/logger"
)

// Engine combines the policy, role, and ACL evaluators into one verdict
// under a fixed precedence:
//
//  1. caller attribute overrides are merged over resolved attributes
//  2. a policy DENY is absolute and ends the decision
//  3. a policy ALLOW with no permission code requested is itself sufficient
//  4. RBAC grants the requested permission code
//  5. an ACL entry for the user, then for any caller role, grants the
//     resource check
//  6. otherwise deny
//
// The engine is stateless: every call is a fresh sequence of read-only
// lookups and concurrent calls need no coordination. It holds no decision
// cache; two decisions racing an administrative edit may differ, which is an
// accepted property of reading live state.
type Engine struct {
	attrs    *AttributeResolver
	roles    *RoleEvaluator
	policies *PolicyEvaluator
	acls     *AclEvaluator

	log         logger.Logger
	traceIDFunc logger.TraceIDFunc

	audit     AuditStore
	auditCh   chan AuditEntry
	auditDone chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine at construction; there is no process-wide
// mutable configuration.
type Option func(*Engine)

// WithLogger installs a structured logger; the default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTraceIDFunc overrides the trace id generator used for audit entries.
func WithTraceIDFunc(f logger.TraceIDFunc) Option {
	return func(e *Engine) { e.traceIDFunc = f }
}

// WithAuditStore enables asynchronous decision auditing. Entries that cannot
// be queued are dropped rather than blocking the decision path.
func WithAuditStore(s AuditStore) Option {
	return func(e *Engine) { e.audit = s }
}

func NewEngine(roles RoleRepository, policies PolicyRepository, attrs AttributeRepository, acls AclRepository, opts ...Option) *Engine {
	e := &Engine{
		attrs:       NewAttributeResolver(attrs),
		roles:       NewRoleEvaluator(roles),
		policies:    NewPolicyEvaluator(policies),
		acls:        NewAclEvaluator(acls),
		log:         logger.NewNullLogger(),
		traceIDFunc: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit != nil {
		e.auditCh = make(chan AuditEntry, 256)
		e.auditDone = make(chan struct{})
		go e.auditWorker()
	}
	return e
}

// Close stops the audit worker after draining queued entries. It is a no-op
// for engines constructed without an audit store.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.auditCh != nil {
			close(e.auditCh)
			<-e.auditDone
		}
	})
}

// CanAccess produces the final allow/deny verdict for one request. A false
// verdict with a nil error is a normal denial; a non-nil error means the
// decision could not be made and the caller must treat it as a non-grant.
func (e *Engine) CanAccess(ctx context.Context, req AccessRequest) (bool, error) {
	dec, err := e.decide(ctx, req, false)
	if err != nil {
		return false, err
	}
	return dec.Allowed, nil
}

// Explain is CanAccess with a step-by-step trace attached to the decision.
func (e *Engine) Explain(ctx context.Context, req AccessRequest) (*Decision, error) {
	return e.decide(ctx, req, true)
}

// HasPermission exposes the RBAC sub-check for callers that need only that
// model, e.g. route guards.
func (e *Engine) HasPermission(ctx context.Context, userID, tenantID, permissionCode string) (bool, error) {
	return e.roles.HasPermission(ctx, userID, tenantID, permissionCode)
}

// HasAnyPermission reports whether the principal holds at least one of the
// given permission codes.
func (e *Engine) HasAnyPermission(ctx context.Context, userID, tenantID string, permissionCodes ...string) (bool, error) {
	for _, code := range permissionCodes {
		ok, err := e.roles.HasPermission(ctx, userID, tenantID, code)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// EvaluatePolicies exposes the policy sub-check; attrs is the already-merged
// attribute map.
func (e *Engine) EvaluatePolicies(ctx context.Context, tenantID string, attrs map[string]Value) (PolicyOutcome, error) {
	return e.policies.Evaluate(ctx, tenantID, attrs)
}

// HasAclEntry exposes the ACL sub-check.
func (e *Engine) HasAclEntry(ctx context.Context, q AclQuery) (bool, error) {
	return e.acls.HasEntry(ctx, q)
}

// RoleEvaluator returns the engine's RBAC evaluator, mainly so callers can
// resolve role ids before building an AccessRequest.
func (e *Engine) RoleEvaluator() *RoleEvaluator { return e.roles }

func (e *Engine) decide(ctx context.Context, req AccessRequest, withTrace bool) (*Decision, error) {
	dec := &Decision{Timestamp: time.Now()}
	var trace []string
	if withTrace {
		trace = make([]string, 0, 8)
	}

	if err := ctx.Err(); err != nil {
		return nil, readErr(ctx, "decide", err)
	}

	// 1. resolve stored attributes and lay caller overrides over them
	resolved, err := e.attrs.Resolve(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	attrs := MergeAttributes(resolved, req.Attributes)
	if withTrace {
		trace = append(trace, fmt.Sprintf("attributes resolved=%d merged=%d", len(resolved), len(attrs)))
	}

	// 2./3. policy layer: deny is absolute, allow satisfies attribute-only checks
	outcome, trace, err := e.policies.evaluate(ctx, req.TenantID, attrs, trace)
	if err != nil {
		return nil, err
	}
	switch outcome.Effect {
	case EffectDeny:
		dec.Reason = "policy deny"
		dec.MatchedBy = outcome.Policy.ID
		return e.finish(ctx, req, dec, trace, "policy denial is absolute")
	case EffectAllow:
		if req.PermissionCode == "" {
			dec.Allowed = true
			dec.Reason = "policy allow"
			dec.MatchedBy = outcome.Policy.ID
			return e.finish(ctx, req, dec, trace, "policy allow with no permission code requested")
		}
		if withTrace {
			trace = append(trace, "policy allow recorded, permission code still required")
		}
	}

	// 4. RBAC for the requested permission code
	if req.PermissionCode != "" {
		ok, err := e.roles.HasPermission(ctx, req.UserID, req.TenantID, req.PermissionCode)
		if err != nil {
			return nil, err
		}
		if ok {
			dec.Allowed = true
			dec.Reason = "rbac grant"
			dec.MatchedBy = req.PermissionCode
			return e.finish(ctx, req, dec, trace, "permission held through role assignment")
		}
		if withTrace {
			trace = append(trace, fmt.Sprintf("rbac no grant for %s", req.PermissionCode))
		}
	}

	// 5. ACL: user entry first, then the caller's roles
	if req.ResourceType != "" && (req.ResourceID != "" || req.Action != "") {
		entry, err := e.checkAcl(ctx, req)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			dec.Allowed = true
			dec.Reason = "acl grant"
			dec.MatchedBy = entry.ID
			return e.finish(ctx, req, dec, trace, fmt.Sprintf("acl entry %s (%s %s)", entry.ID, entry.SubjectType, entry.SubjectID))
		}
		if withTrace {
			trace = append(trace, fmt.Sprintf("acl no entry for %s/%s", req.ResourceType, req.ResourceID))
		}
	}

	// 6. nothing allowed it
	dec.Reason = "default deny"
	return e.finish(ctx, req, dec, trace, "default deny")
}

// aclPermission picks the permission string for the ACL lookup: the
// requested action when present, otherwise the permission code.
func aclPermission(req AccessRequest) string {
	if req.Action != "" {
		return req.Action
	}
	return req.PermissionCode
}

// checkAcl probes the user subject first, then every caller role. The role
// probes are independent reads OR-reduced, so they run concurrently; order
// does not affect the result.
func (e *Engine) checkAcl(ctx context.Context, req AccessRequest) (*AclEntry, error) {
	perm := aclPermission(req)
	entry, err := e.acls.FindEntry(ctx, AclQuery{
		SubjectType:  SubjectUser,
		SubjectID:    req.UserID,
		TenantID:     req.TenantID,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Permission:   perm,
	})
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}
	if len(req.RoleIDs) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var hit *AclEntry
	g, gctx := errgroup.WithContext(ctx)
	for _, roleID := range req.RoleIDs {
		q := AclQuery{
			SubjectType:  SubjectRole,
			SubjectID:    roleID,
			TenantID:     req.TenantID,
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
			Permission:   perm,
		}
		g.Go(func() error {
			found, err := e.acls.FindEntry(gctx, q)
			if err != nil {
				return err
			}
			if found != nil {
				mu.Lock()
				if hit == nil {
					hit = found
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// a grant found on one role stands even when a sibling probe failed
		if hit == nil {
			return nil, readErr(ctx, "find acl entry", err)
		}
	}
	return hit, nil
}

// finish closes out a decision: attach the trace, log, audit, return.
func (e *Engine) finish(ctx context.Context, req AccessRequest, dec *Decision, trace []string, last string) (*Decision, error) {
	if trace != nil {
		dec.Trace = append(trace, last)
	}
	e.log.Debug("access decision",
		"tenant", req.TenantID,
		"user", req.UserID,
		"permission", req.PermissionCode,
		"resource_type", req.ResourceType,
		"resource_id", req.ResourceID,
		"action", req.Action,
		"allowed", dec.Allowed,
		"reason", dec.Reason,
		"matched_by", dec.MatchedBy,
	)
	e.auditDecision(req, dec)
	return dec, nil
}

func (e *Engine) auditDecision(req AccessRequest, dec *Decision) {
	if e.auditCh == nil {
		return
	}
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: dec.Timestamp,
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Request:   req,
		Decision:  dec,
		TraceID:   e.traceIDFunc(),
	}
	select {
	case e.auditCh <- entry:
	default:
		// never block a decision on the audit queue
		e.log.Error("audit entry dropped", "tenant", req.TenantID, "user", req.UserID)
	}
}

func (e *Engine) auditWorker() {
	defer close(e.auditDone)
	bg := context.Background()
	for entry := range e.auditCh {
		if err := e.audit.LogDecision(bg, &entry); err != nil {
			e.log.Error("audit write failed", "entry", entry.ID, "error", err.Error())
		}
	}
}
