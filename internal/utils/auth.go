package utils

import "context"

// SetUserContext stores the verified token subject (called by middleware).
func SetUserContext(ctx context.Context, id string, email string, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	return ctx
}

// GetUserIDFromContext retrieves the subject id safely.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// SetAdminContext records the admin row resolved for the current subject.
func SetAdminContext(ctx context.Context, adminID int64, superAdmin bool) context.Context {
	ctx = context.WithValue(ctx, AdminIDKey, adminID)
	return context.WithValue(ctx, SuperKey, superAdmin)
}

func GetAdminIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(AdminIDKey).(int64)
	return id, ok
}

func IsSuperAdmin(ctx context.Context) bool {
	super, _ := ctx.Value(SuperKey).(bool)
	return super
}
