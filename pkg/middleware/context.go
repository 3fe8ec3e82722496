package middleware

import "context"

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// UserIDFromContext extracts the user ID set by the auth middleware from the
// request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
