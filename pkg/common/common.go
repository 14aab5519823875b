package common

import (
	"context"
)

// CommonResponse is a lightweight response wrapper used by HTTP handlers.
type CommonResponse struct {
	Code  int         `json:"code"`
	Msg   string      `json:"msg,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

type contextKey string

const (
	domainIDKey contextKey = "domain_id"
	userIDKey   contextKey = "user_id"
)

// ContextWithDomainID stores the caller's domain id into context.
func ContextWithDomainID(ctx context.Context, domainID string) context.Context {
	return context.WithValue(ctx, domainIDKey, domainID)
}

// GetDomainID retrieves the caller's domain id from context.
func GetDomainID(ctx context.Context) string {
	if v, ok := ctx.Value(domainIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID stores the caller's user id into context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the caller's user id from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
