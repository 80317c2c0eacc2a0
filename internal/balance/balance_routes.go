package balance

import (
	"go-leave/internal/middleware"
	"go-leave/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
	jwtSecret string,
) {
	balances := r.Group("/balances")
	balances.Use(middleware.AuthMiddleware(jwtSecret))
	{
		balances.GET("/me", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionRead), handler.GetMine)
	}

	userBalances := r.Group("/users/:id/balances")
	userBalances.Use(middleware.AuthMiddleware(jwtSecret))
	{
		userBalances.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionReadAll), handler.GetByUser)
		userBalances.PUT("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionOverride), handler.Override)
	}
}
