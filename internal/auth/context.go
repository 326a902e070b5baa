package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxEmail
	ctxRole
	ctxSessionID
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, id.UserID)
	ctx = context.WithValue(ctx, ctxEmail, id.Email)
	ctx = context.WithValue(ctx, ctxRole, id.Role)
	ctx = context.WithValue(ctx, ctxSessionID, id.SessionID)
	return ctx
}

// IdentityFrom reports the identity placed on ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	uid, err := UserID(ctx)
	if err != nil {
		return Identity{}, false
	}
	email, _ := ctx.Value(ctxEmail).(string)
	role, _ := ctx.Value(ctxRole).(string)
	sid, _ := ctx.Value(ctxSessionID).(string)
	return Identity{UserID: uid, Email: email, Role: role, SessionID: sid}, true
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
