package authz

import (
	"context"
	"fmt"
	"sort"
)

// PolicyOutcome is the policy layer's contribution to a decision. Effect is
// EffectNone when no policy fully matched. Policy points at the matching
// policy for explainability; it is nil for EffectNone.
type PolicyOutcome struct {
	Effect Effect
	Policy *Policy
}

// PolicyEvaluator evaluates a tenant's prioritized policy set against a
// principal's attribute map. The first policy whose rules all match decides.
type PolicyEvaluator struct {
	policies PolicyRepository
}

func NewPolicyEvaluator(policies PolicyRepository) *PolicyEvaluator {
	return &PolicyEvaluator{policies: policies}
}

// Evaluate walks active policies in priority order (higher first, ties kept
// in insertion order) and returns the effect of the first full match. Rules
// within one policy are AND-ed; a rule naming an attribute the principal has
// no value for is a non-match and fails its policy immediately.
func (e *PolicyEvaluator) Evaluate(ctx context.Context, tenantID string, attrs map[string]Value) (PolicyOutcome, error) {
	out, _, err := e.evaluate(ctx, tenantID, attrs, nil)
	return out, err
}

// evaluate is the shared implementation; when trace is non-nil it appends a
// line per inspected policy.
func (e *PolicyEvaluator) evaluate(ctx context.Context, tenantID string, attrs map[string]Value, trace []string) (PolicyOutcome, []string, error) {
	policies, err := e.policies.ListActivePolicies(ctx, tenantID)
	if err != nil {
		return PolicyOutcome{}, trace, readErr(ctx, "list policies", err)
	}

	// The repository already orders by priority; re-sort stably so the
	// tie-break invariant holds no matter the backing store.
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].Priority > policies[j].Priority
	})

	for i := range policies {
		p := &policies[i]
		if !p.IsActive {
			continue
		}
		if matchPolicy(p, attrs) {
			if trace != nil {
				trace = append(trace, fmt.Sprintf("policy=%s priority=%d MATCH effect=%s", p.ID, p.Priority, p.Effect))
			}
			return PolicyOutcome{Effect: p.Effect, Policy: p}, trace, nil
		}
		if trace != nil {
			trace = append(trace, fmt.Sprintf("policy=%s priority=%d no_match", p.ID, p.Priority))
		}
	}
	return PolicyOutcome{Effect: EffectNone}, trace, nil
}

func matchPolicy(p *Policy, attrs map[string]Value) bool {
	for i := range p.Rules {
		rule := &p.Rules[i]
		actual, ok := attrs[rule.Attribute]
		if !ok {
			// a rule over an attribute the principal does not carry can
			// never match; short-circuit the whole policy
			return false
		}
		if !EvaluateCondition(actual, rule.Operator, rule.Value) {
			return false
		}
	}
	return true
}
