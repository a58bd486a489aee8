package service

import (
	"context"
	"slices"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// AllowAll in a role's allow list grants every permission.
const AllowAll = "*"

// AccessDecision is the answer to a permission check.
type AccessDecision struct {
	User       string   `json:"user"`
	Permission string   `json:"permission"`
	Roles      []string `json:"roles"`
	Allowed    bool     `json:"allowed"`
}

// CheckAccess reports whether any role of user allows permission. The user is
// matched by id or by name.
func (s *Service) CheckAccess(ctx context.Context, user, permission string) (*AccessDecision, error) {
	if user == "" {
		return nil, core.MissingField("user")
	}
	if permission == "" {
		return nil, core.MissingField("permission")
	}

	policies, err := s.policies.AccessPolicies(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := policies.FindUser(user)
	if !ok {
		return nil, core.NotFound("user", user)
	}

	d := &AccessDecision{User: user, Permission: permission, Roles: u.Roles}
	if d.Roles == nil {
		d.Roles = []string{}
	}
	for _, role := range u.Roles {
		p, ok := policies.Policy(role)
		if ok && (slices.Contains(p.Allow, AllowAll) || slices.Contains(p.Allow, permission)) {
			d.Allowed = true
			break
		}
	}
	return d, nil
}

// GrantPermission adds permission to role, creating the role policy when
// needed, and returns the resulting allow list.
func (s *Service) GrantPermission(ctx context.Context, role, permission string) ([]string, error) {
	if role == "" {
		return nil, core.MissingField("role")
	}
	if permission == "" {
		return nil, core.MissingField("permission")
	}

	var allow []string
	err := s.policies.UpdateAccessPolicies(ctx, func(p *model.AccessPolicies) error {
		policy, ok := p.Policy(role)
		if !ok {
			p.Policies = append(p.Policies, model.RolePolicy{Role: role})
			policy = &p.Policies[len(p.Policies)-1]
		}
		if !slices.Contains(policy.Allow, permission) {
			policy.Allow = append(policy.Allow, permission)
		}
		allow = slices.Clone(policy.Allow)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Granted permission", "role", role, "permission", permission)
	return allow, nil
}
