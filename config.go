package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oarkflow/date"
	"gopkg.in/yaml.v3"
)

// Config describes a complete fixture set: tenants, the permission catalog,
// roles with their grants, assignments, attribute values, policies, and ACL
// entries. It loads from YAML or JSON and seeds a MemoryBackend; it is an
// explicit value handed around, never process-wide state.
type Config struct {
	Tenants     []TenantConfig     `json:"tenants" yaml:"tenants"`
	Permissions []Permission       `json:"permissions" yaml:"permissions"`
	Roles       []RoleConfig       `json:"roles" yaml:"roles"`
	Assignments []AssignmentConfig `json:"assignments" yaml:"assignments"`
	Attributes  []AttributeConfig  `json:"attributes" yaml:"attributes"`
	Policies    []PolicyConfig     `json:"policies" yaml:"policies"`
	ACLs        []AclConfig        `json:"acls" yaml:"acls"`
}

type TenantConfig struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// RoleConfig is a Role plus the codes of the permissions it grants.
type RoleConfig struct {
	Role        `yaml:",inline"`
	Permissions []string `json:"permissions" yaml:"permissions"` // permission codes
}

type AssignmentConfig struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	TenantID  string `json:"tenant_id" yaml:"tenant_id"`
	RoleID    string `json:"role_id" yaml:"role_id"`
	ExpiresAt string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

type AttributeConfig struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Name   string `json:"name" yaml:"name"`
	Value  any    `json:"value" yaml:"value"`
}

type PolicyRuleConfig struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     any    `json:"value" yaml:"value"`
}

type PolicyConfig struct {
	ID       string             `json:"id" yaml:"id"`
	TenantID string             `json:"tenant_id" yaml:"tenant_id"`
	Name     string             `json:"name" yaml:"name"`
	Effect   string             `json:"effect" yaml:"effect"`
	Priority int                `json:"priority" yaml:"priority"`
	IsActive *bool              `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Rules    []PolicyRuleConfig `json:"rules" yaml:"rules"`
}

type AclConfig struct {
	ID           string `json:"id" yaml:"id"`
	TenantID     string `json:"tenant_id" yaml:"tenant_id"`
	SubjectType  string `json:"subject_type" yaml:"subject_type"`
	SubjectID    string `json:"subject_id" yaml:"subject_id"`
	ResourceType string `json:"resource_type" yaml:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Permission   string `json:"permission" yaml:"permission"`
}

func LoadConfigYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

func LoadConfigJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile picks the parser from the file extension (.yaml/.yml/.json).
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return LoadConfigYAML(data)
	case strings.HasSuffix(path, ".json"):
		return LoadConfigJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// Validate checks referential integrity of the fixture set before seeding.
func (c *Config) Validate() error {
	tenants := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenant missing id")
		}
		tenants[t.ID] = true
	}
	permCodes := make(map[string]bool, len(c.Permissions))
	for _, p := range c.Permissions {
		if p.ID == "" || p.Code == "" {
			return fmt.Errorf("permission %q missing id or code", p.ID+p.Code)
		}
		if permCodes[p.Code] {
			return fmt.Errorf("duplicate permission code %q", p.Code)
		}
		permCodes[p.Code] = true
	}
	roles := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		if r.ID == "" {
			return fmt.Errorf("role missing id")
		}
		if len(tenants) > 0 && !tenants[r.TenantID] {
			return fmt.Errorf("role %s references unknown tenant %q", r.ID, r.TenantID)
		}
		for _, code := range r.Permissions {
			if !permCodes[code] {
				return fmt.Errorf("role %s grants unknown permission code %q", r.ID, code)
			}
		}
		roles[r.ID] = true
	}
	for _, a := range c.Assignments {
		if !roles[a.RoleID] {
			return fmt.Errorf("assignment for %s references unknown role %q", a.UserID, a.RoleID)
		}
		if a.ExpiresAt != "" {
			if _, err := date.Parse(a.ExpiresAt); err != nil {
				return fmt.Errorf("assignment for %s: bad expires_at %q: %w", a.UserID, a.ExpiresAt, err)
			}
		}
	}
	for _, p := range c.Policies {
		if p.ID == "" {
			return fmt.Errorf("policy missing id")
		}
		if eff := Effect(p.Effect); eff != EffectAllow && eff != EffectDeny {
			return fmt.Errorf("policy %s has invalid effect %q", p.ID, p.Effect)
		}
		if len(p.Rules) == 0 {
			return fmt.Errorf("policy %s has no rules", p.ID)
		}
	}
	for _, e := range c.ACLs {
		st := SubjectType(e.SubjectType)
		if st != SubjectUser && st != SubjectRole {
			return fmt.Errorf("acl %s has invalid subject_type %q", e.ID, e.SubjectType)
		}
		if e.ResourceType == "" || e.Permission == "" {
			return fmt.Errorf("acl %s missing resource_type or permission", e.ID)
		}
	}
	return nil
}

// Apply seeds a memory backend from the fixture set. Validate is called
// first so a partially seeded backend is never handed back on bad input.
func (c *Config) Apply(ctx context.Context, b *MemoryBackend) error {
	if err := c.Validate(); err != nil {
		return err
	}

	permByCode := make(map[string]Permission, len(c.Permissions))
	for _, p := range c.Permissions {
		b.Roles.AddPermission(p)
		permByCode[p.Code] = p
	}
	for _, r := range c.Roles {
		b.Roles.AddRole(r.Role)
		for _, code := range r.Permissions {
			b.Roles.GrantPermission(r.ID, permByCode[code].ID)
		}
	}
	for _, a := range c.Assignments {
		var expires *time.Time
		if a.ExpiresAt != "" {
			t, err := date.Parse(a.ExpiresAt)
			if err != nil {
				return fmt.Errorf("assignment for %s: %w", a.UserID, err)
			}
			expires = &t
		}
		b.Roles.Assign(a.UserID, a.TenantID, a.RoleID, expires)
	}
	for _, av := range c.Attributes {
		v, err := ValueFrom(av.Value)
		if err != nil {
			return fmt.Errorf("attribute %s for %s: %w", av.Name, av.UserID, err)
		}
		b.Attributes.SetValue(av.UserID, av.Name, v)
	}
	for _, pc := range c.Policies {
		p := Policy{
			ID:       pc.ID,
			TenantID: pc.TenantID,
			Name:     pc.Name,
			Effect:   Effect(pc.Effect),
			Priority: pc.Priority,
			IsActive: pc.IsActive == nil || *pc.IsActive,
		}
		for i, rc := range pc.Rules {
			v, err := ValueFrom(rc.Value)
			if err != nil {
				return fmt.Errorf("policy %s rule %d: %w", pc.ID, i, err)
			}
			p.Rules = append(p.Rules, PolicyRule{
				ID:        fmt.Sprintf("%s#%d", pc.ID, i),
				Attribute: rc.Attribute,
				Operator:  Operator(rc.Operator),
				Value:     v,
			})
		}
		b.Policies.AddPolicy(p)
	}
	for _, ac := range c.ACLs {
		b.Acls.Grant(AclEntry{
			ID:           ac.ID,
			TenantID:     ac.TenantID,
			SubjectType:  SubjectType(ac.SubjectType),
			SubjectID:    ac.SubjectID,
			ResourceType: ac.ResourceType,
			ResourceID:   ac.ResourceID,
			Permission:   ac.Permission,
		})
	}
	return nil
}

// ToYAML exports the fixture set.
func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

// ToJSON exports the fixture set.
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }
