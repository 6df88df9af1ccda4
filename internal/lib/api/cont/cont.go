package cont

import (
	"ShopTalk/entity"
	"context"
)

type contextKey string

const userKey contextKey = "auth-user"

// PutUser stores the authenticated user in the request context.
func PutUser(ctx context.Context, user *entity.UserAuth) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// User returns the authenticated user from the request context, or nil.
func User(ctx context.Context) *entity.UserAuth {
	user, ok := ctx.Value(userKey).(*entity.UserAuth)
	if !ok {
		return nil
	}
	return user
}
