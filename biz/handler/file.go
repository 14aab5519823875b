package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/filebridge/biz/dal/db"
	"github.com/yi-nology/filebridge/biz/service"
	"github.com/yi-nology/filebridge/pkg/storage"
)

// FileHandler exposes the file-management HTTP surface.
type FileHandler struct {
	service *service.Service
}

func NewFileHandler(svc *service.Service) *FileHandler {
	return &FileHandler{service: svc}
}

// Upload handles multipart uploads for every scope route. The scope and its
// identifiers come from the route parameters; the payload streams from the
// multipart part into the backend without full buffering.
func (h *FileHandler) Upload(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	defer file.Close()

	input := &service.FileAddInput{
		Name:         fileHeader.Filename,
		ResourceType: string(c.FormValue("resource_type")),
		ResourceID:   string(c.FormValue("resource_id")),
		DomainID:     c.Param("domain_id"),
		WorkspaceID:  c.Param("workspace_id"),
		ProjectID:    c.Param("project_id"),
		UserID:       c.Param("user_id"),
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Body:         file,
	}
	input.ResourceGroup = scopeFromParams(input)

	if rawTags := c.FormValue("tags"); len(rawTags) > 0 {
		tags := map[string]string{}
		if err := json.Unmarshal(rawTags, &tags); err != nil {
			writeBadRequest(c, fmt.Errorf("tags must be a JSON object of strings: %w", err))
			return
		}
		input.Tags = tags
	}

	created, err := h.service.AddFile(ctx, input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, created)
}

// Get returns the metadata record for one file.
func (h *FileHandler) Get(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")
	file, err := h.service.GetFile(ctx, fileID, scopeFilter(ctx, c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, file)
}

// List returns metadata records matching the query filters.
func (h *FileHandler) List(ctx context.Context, c *app.RequestContext) {
	filter := db.ListFilter{
		ScopeFilter:   scopeFilter(ctx, c),
		FileID:        c.Query("file_id"),
		Name:          c.Query("name"),
		ResourceGroup: c.Query("resource_group"),
		FileType:      c.Query("file_type"),
		ResourceType:  c.Query("resource_type"),
		ResourceID:    c.Query("resource_id"),
	}
	files, err := h.service.ListFiles(ctx, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, map[string]any{
		"results":     files,
		"total_count": len(files),
	})
}

type fileUpdateRequest struct {
	Tags         map[string]string `json:"tags"`
	ResourceType *string           `json:"resource_type"`
	ResourceID   *string           `json:"resource_id"`
	ProjectID    *string           `json:"project_id"`
}

// Update changes tags, reference, or project attachment of a record.
func (h *FileHandler) Update(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")

	var req fileUpdateRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		writeBadRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	file, err := h.service.UpdateFile(ctx, fileID, scopeFilter(ctx, c), &service.FileUpdateInput{
		Tags:         req.Tags,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		ProjectID:    req.ProjectID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, file)
}

// Delete removes the stored object and its metadata record.
func (h *FileHandler) Delete(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")
	if err := h.service.DeleteFile(ctx, fileID, scopeFilter(ctx, c)); err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, map[string]any{"file_id": fileID})
}

// Download proxies the object contents back to the client as one chunked
// body. An unknown object length falls back to chunked transfer encoding.
func (h *FileHandler) Download(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")
	file, stream, err := h.service.DownloadFile(ctx, fileID, scopeFilter(ctx, c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	contentType := mime.TypeByExtension("." + file.FileType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response.Header.SetContentType(contentType)
	c.Response.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))

	size := -1
	if stream.ContentLength() != storage.LengthUnknown {
		size = int(stream.ContentLength())
	}
	c.Response.SetBodyStream(stream, size)
}

// DownloadURL returns a presigned direct download URL for the file.
func (h *FileHandler) DownloadURL(ctx context.Context, c *app.RequestContext) {
	fileID := c.Param("file_id")
	url, err := h.service.GetDownloadURL(ctx, fileID, scopeFilter(ctx, c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respondData(c, map[string]any{
		"file_id":      fileID,
		"download_url": url,
	})
}

// Ping reports liveness.
func (h *FileHandler) Ping(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"message": "pong"})
}

// scopeFromParams derives the resource group from which route parameters are
// present. Deeper identifiers imply narrower scopes.
func scopeFromParams(input *service.FileAddInput) storage.Scope {
	switch {
	case input.ProjectID != "":
		return storage.ScopeProject
	case input.WorkspaceID != "":
		return storage.ScopeWorkspace
	case input.UserID != "":
		return storage.ScopeUser
	case input.DomainID != "":
		return storage.ScopeDomain
	default:
		return storage.ScopeSystem
	}
}
