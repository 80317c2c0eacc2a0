package rbac

type PermissionResponse struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type RolePermissionsResponse struct {
	Role        string               `json:"role"`
	Roles       []string             `json:"roles"`
	Permissions []PermissionResponse `json:"permissions"`
}
