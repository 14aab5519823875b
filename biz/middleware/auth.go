package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/yi-nology/filebridge/pkg/common"
)

// Identity returns a middleware that lifts the caller's identity headers into
// the request context so lower layers can scope queries without touching the
// transport.
func Identity() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if domainID := string(c.GetHeader("X-Domain-Id")); domainID != "" {
			ctx = common.ContextWithDomainID(ctx, domainID)
		}
		if userID := string(c.GetHeader("X-User-Id")); userID != "" {
			ctx = common.ContextWithUserID(ctx, userID)
		}
		c.Next(ctx)
	}
}
