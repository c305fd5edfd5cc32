package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type userIDKey struct{}

// WithUserID stores the acting user on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the acting user, looking at the context first and then at
// the x-user-id request metadata. Empty when neither carries one.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey{}).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get("x-user-id"); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}
