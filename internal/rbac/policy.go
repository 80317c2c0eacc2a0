package rbac

import (
	"go-leave/internal/domain"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	ResourceLeave   = "leave"
	ResourceBalance = "balance"

	ActionCreate   = "create"
	ActionRead     = "read"
	ActionReadAll  = "read_all"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionOverride = "override"
)

const modelText = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

type Policy struct {
	Role     string
	Resource string
	Action   string
}

// DefaultPolicies grants USER self-service on its own leave and balances;
// ADMIN inherits USER and additionally decides requests and overrides balances.
var DefaultPolicies = []Policy{
	{domain.RoleUser, ResourceLeave, ActionCreate},
	{domain.RoleUser, ResourceLeave, ActionRead},
	{domain.RoleUser, ResourceBalance, ActionRead},

	{domain.RoleAdmin, ResourceLeave, ActionReadAll},
	{domain.RoleAdmin, ResourceLeave, ActionApprove},
	{domain.RoleAdmin, ResourceLeave, ActionReject},
	{domain.RoleAdmin, ResourceBalance, ActionReadAll},
	{domain.RoleAdmin, ResourceBalance, ActionOverride},
}

// NewEnforcer builds an in-memory enforcer loaded with DefaultPolicies.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	for _, p := range DefaultPolicies {
		if _, err := e.AddPolicy(p.Role, p.Resource, p.Action); err != nil {
			return nil, err
		}
	}
	if _, err := e.AddGroupingPolicy(domain.RoleAdmin, domain.RoleUser); err != nil {
		return nil, err
	}

	return e, nil
}
