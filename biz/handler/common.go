package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/yi-nology/filebridge/biz/dal/db"
	"github.com/yi-nology/filebridge/biz/service"
	pkgcommon "github.com/yi-nology/filebridge/pkg/common"
	"github.com/yi-nology/filebridge/pkg/storage"
)

func writeBadRequest(c *app.RequestContext, err error) {
	c.JSON(consts.StatusOK, pkgcommon.CommonResponse{
		Code:  consts.StatusBadRequest,
		Msg:   err.Error(),
		Error: err.Error(),
	})
}

func writeNotFound(c *app.RequestContext, err error) {
	c.JSON(consts.StatusOK, pkgcommon.CommonResponse{
		Code:  consts.StatusNotFound,
		Msg:   err.Error(),
		Error: err.Error(),
	})
}

func writeInternalError(c *app.RequestContext, err error) {
	c.JSON(consts.StatusOK, pkgcommon.CommonResponse{
		Code:  consts.StatusInternalServerError,
		Msg:   "internal error",
		Error: err.Error(),
	})
}

// writeServiceError maps service sentinels onto response codes.
func writeServiceError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, service.ErrFileNotFound), errors.Is(err, storage.ErrObjectNotFound):
		writeNotFound(c, err)
	case errors.Is(err, service.ErrChangeScope),
		errors.Is(err, service.ErrWorkspaceNotFound),
		errors.Is(err, service.ErrDownloadURLNotSupported),
		errors.Is(err, storage.ErrUnsupportedScope):
		writeBadRequest(c, err)
	default:
		writeInternalError(c, err)
	}
}

func respondData(c *app.RequestContext, data any) {
	c.JSON(consts.StatusOK, pkgcommon.CommonResponse{
		Code: consts.StatusOK,
		Data: data,
	})
}

// scopeFilter builds the caller's visibility filter from query parameters,
// falling back to the authenticated domain from context.
func scopeFilter(ctx context.Context, c *app.RequestContext) db.ScopeFilter {
	filter := db.ScopeFilter{
		DomainID:    c.Query("domain_id"),
		WorkspaceID: c.Query("workspace_id"),
		ProjectID:   c.Query("project_id"),
		UserID:      c.Query("user_id"),
	}
	if filter.DomainID == "" {
		filter.DomainID = pkgcommon.GetDomainID(ctx)
	}
	return filter
}
