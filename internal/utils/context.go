package utils

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "email"
	UserRoleKey  contextKey = "role"
	AdminIDKey   contextKey = "admin_id"
	SuperKey     contextKey = "super_admin"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)
