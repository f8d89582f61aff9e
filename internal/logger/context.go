package logger

import (
	"context"

	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

type ctxKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromCtx returns the global logger tagged with the request id and, once auth
// middleware has run, the caller: admin id for staff, subject for clients.
func FromCtx(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if reqID := RequestIDFrom(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if adminID, ok := utils.GetAdminIDFromContext(ctx); ok {
		fields = append(fields, zap.Int64("admin_id", adminID))
	} else if subject, ok := utils.GetUserIDFromContext(ctx); ok {
		fields = append(fields, zap.String("subject", subject))
	}
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}
