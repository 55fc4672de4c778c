package authz

import (
	"fmt"
	"strings"

	"github.com/musicfy-storefront/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 预置角色：运营人员可以推进订单状态并管理授权
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleCustomer,
			Policies: []Policy{
				{Object: "/orders", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleOperator,
			Inherits: []string{constants.RoleCustomer},
			Policies: []Policy{
				{Object: "/orders/:id/status", Action: "PATCH"},
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return err
			}
		}
	}
	return nil
}

// AssignOperators 将配置中列出的主体授予运营角色
func (s *Service) AssignOperators(subjectIDs []string) error {
	for _, subjectID := range subjectIDs {
		subjectID = strings.TrimSpace(subjectID)
		if subjectID == "" {
			continue
		}
		if err := s.AddSubjectRole(subjectID, constants.RoleOperator); err != nil {
			return err
		}
	}
	return nil
}
