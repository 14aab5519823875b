package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/yi-nology/filebridge/biz/handler"
)

// RegisterFileRoutes configures HTTP routes for the file-management APIs.
// Upload routes encode the scope in the path; deeper identifiers select
// narrower scopes.
func RegisterFileRoutes(r *server.Hertz, h *handler.FileHandler) {
	if h == nil {
		return
	}

	v1 := r.Group("/api/v1")

	files := v1.Group("/files")
	files.GET("", h.List)
	files.POST("/public/upload", h.Upload)

	domain := files.Group("/domain/:domain_id")
	domain.POST("/upload", h.Upload)
	domain.POST("/user/:user_id/upload", h.Upload)

	workspace := domain.Group("/workspace/:workspace_id")
	workspace.POST("/upload", h.Upload)
	workspace.POST("/project/:project_id/upload", h.Upload)

	file := v1.Group("/file/:file_id")
	file.GET("", h.Get)
	file.PUT("", h.Update)
	file.DELETE("", h.Delete)
	file.GET("/download", h.Download)
	file.GET("/download-url", h.DownloadURL)

	r.GET("/ping", h.Ping)
}
