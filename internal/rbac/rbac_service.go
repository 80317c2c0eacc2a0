package rbac

import (
	"sort"
	"sync"

	"go-leave/internal/domain"
	"go-leave/internal/shared/apperror"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
)

//go:generate mockgen -source=rbac_service.go -destination=mock/rbac_service_mock.go -package=mock
type Service interface {
	Enforce(role, resource, action string) (bool, error)
	RequireRole(caller domain.Caller, role string) error
	PermissionsFor(role string) (RolePermissionsResponse, error)
}

type service struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	logger   *zap.Logger
}

func NewService(enforcer *casbin.Enforcer, logger ...*zap.Logger) Service {
	l := zap.L().Named("rbac.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.service")
	}
	return &service{enforcer: enforcer, logger: l}
}

func (s *service) Enforce(role, resource, action string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed, err := s.enforcer.Enforce(role, resource, action)
	if err != nil {
		s.logger.Error("rbac enforce failed",
			zap.String("role", role),
			zap.String("resource", resource),
			zap.String("action", action),
			zap.Error(err),
		)
		return false, err
	}

	s.logger.Debug("rbac enforce result",
		zap.String("role", role),
		zap.String("resource", resource),
		zap.String("action", action),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

// RequireRole fails with a forbidden AppError unless the caller's role is role
// or inherits it.
func (s *service) RequireRole(caller domain.Caller, role string) error {
	if caller.Role == "" {
		return apperror.ErrForbidden
	}
	if caller.Role == role {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	has, err := s.enforcer.HasRoleForUser(caller.Role, role)
	if err != nil {
		return err
	}
	if !has {
		s.logger.Warn("rbac role required",
			zap.String("user_id", caller.UserID),
			zap.String("role", caller.Role),
			zap.String("required_role", role),
		)
		return apperror.ErrForbidden
	}
	return nil
}

func (s *service) PermissionsFor(role string) (RolePermissionsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles, err := s.enforcer.GetImplicitRolesForUser(role)
	if err != nil {
		return RolePermissionsResponse{}, err
	}
	perms, err := s.enforcer.GetImplicitPermissionsForUser(role)
	if err != nil {
		return RolePermissionsResponse{}, err
	}

	resp := RolePermissionsResponse{
		Role:        role,
		Roles:       roles,
		Permissions: make([]PermissionResponse, 0, len(perms)),
	}
	for _, p := range perms {
		if len(p) < 3 {
			continue
		}
		resp.Permissions = append(resp.Permissions, PermissionResponse{Resource: p[1], Action: p[2]})
	}
	sort.Slice(resp.Permissions, func(i, j int) bool {
		if resp.Permissions[i].Resource != resp.Permissions[j].Resource {
			return resp.Permissions[i].Resource < resp.Permissions[j].Resource
		}
		return resp.Permissions[i].Action < resp.Permissions[j].Action
	})
	return resp, nil
}
