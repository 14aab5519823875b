package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// Logging returns a middleware that logs each request with the byte counts
// moved in both directions, which is the figure that matters on the upload
// and download routes.
func Logging() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		latency := time.Since(start)
		method := string(c.Request.Method())
		path := string(c.Request.URI().Path())
		statusCode := c.Response.StatusCode()

		hlog.CtxInfof(ctx, "[%s] %s %s %d in=%dB out=%dB %v",
			c.ClientIP(),
			method,
			path,
			statusCode,
			len(c.Request.Body()),
			c.Response.Header.ContentLength(),
			latency,
		)
	}
}
