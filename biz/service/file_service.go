package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/gorm"

	"github.com/yi-nology/filebridge/biz/dal/db"
	"github.com/yi-nology/filebridge/biz/dal/model"
	"github.com/yi-nology/filebridge/pkg/storage"
	"github.com/yi-nology/filebridge/pkg/transfer"
	"github.com/yi-nology/filebridge/pkg/urlcache"
)

// ErrDownloadURLNotSupported means the configured backend cannot presign
// direct download URLs; clients must use the proxied download instead.
var ErrDownloadURLNotSupported = errors.New("backend does not support download URLs")

// rollbackTimeout bounds the compensating record delete after a failed
// transfer. The rollback must survive the cancellation that may have killed
// the transfer itself.
const rollbackTimeout = 15 * time.Second

// FileAddInput carries metadata and payload for a new file.
type FileAddInput struct {
	Name          string
	Tags          map[string]string
	ResourceType  string
	ResourceID    string
	ResourceGroup storage.Scope
	DomainID      string
	WorkspaceID   string
	ProjectID     string
	UserID        string
	ContentType   string
	Body          io.Reader
}

// FileUpdateInput carries the mutable fields of an existing record. Nil
// pointers leave the corresponding column untouched.
type FileUpdateInput struct {
	Tags         map[string]string
	ResourceType *string
	ResourceID   *string
	ProjectID    *string
}

// Service orchestrates file metadata persistence and object transfers so the
// two stay consistent: a readable record implies a stored object.
type Service struct {
	logic    *Logic
	transfer *transfer.Coordinator
	backend  storage.Backend
	urls     *urlcache.Cache
	identity IdentityChecker

	// TransferTimeout bounds one whole upload transfer. Zero disables the
	// deadline; downloads are paced by the client and stay unbounded.
	TransferTimeout time.Duration
}

func NewService(dbConn *gorm.DB, backend storage.Backend, coordinator *transfer.Coordinator, urls *urlcache.Cache, identity IdentityChecker) *Service {
	if identity == nil {
		identity = NoopIdentityChecker{}
	}
	if urls == nil {
		urls = urlcache.New(nil, 0)
	}
	return &Service{
		logic:    NewLogic(dbConn),
		transfer: coordinator,
		backend:  backend,
		urls:     urls,
		identity: identity,
	}
}

// AddFile creates the metadata record and then transfers the payload. A
// failed transfer rolls the record back so no record ever points at a
// missing object.
func (s *Service) AddFile(ctx context.Context, input *FileAddInput) (*model.File, error) {
	if input == nil {
		return nil, errors.New("input required")
	}
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	if input.Body == nil {
		return nil, errors.New("file data is required")
	}
	if !input.ResourceGroup.Valid() {
		return nil, fmt.Errorf("%w (resource_group = %s)", storage.ErrUnsupportedScope, input.ResourceGroup)
	}
	if err := validateScopeIDs(input); err != nil {
		return nil, err
	}

	if input.ResourceGroup == storage.ScopeWorkspace || input.ResourceGroup == storage.ScopeProject {
		if err := s.identity.CheckWorkspace(ctx, input.WorkspaceID, input.DomainID); err != nil {
			return nil, err
		}
	}

	file := &model.File{
		Name:     input.Name,
		FileType: fileTypeFromName(input.Name),
		Tags:     input.Tags,
		Reference: model.FileReference{
			ResourceType: input.ResourceType,
			ResourceID:   input.ResourceID,
		},
		ResourceGroup: string(input.ResourceGroup),
		DomainID:      input.DomainID,
		WorkspaceID:   input.WorkspaceID,
		ProjectID:     input.ProjectID,
		UserID:        input.UserID,
	}
	if err := s.logic.CreateFile(ctx, file); err != nil {
		return nil, err
	}

	uploadCtx := ctx
	if s.TransferTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, s.TransferTimeout)
		defer cancel()
	}
	written, err := s.transfer.UploadStream(uploadCtx, input.ResourceGroup, file.FileID, input.Body, input.ContentType)
	if err != nil {
		// The upload may have failed because ctx itself died; the record
		// delete must still go through or the record outlives its object.
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if delErr := s.logic.DeleteFile(rollbackCtx, file.FileID); delErr != nil {
			hlog.CtxErrorf(rollbackCtx, "rollback of file record %s failed after upload error: %v", file.FileID, delErr)
		}
		return nil, fmt.Errorf("%w (file_id = %s, name = %s): %w", ErrFileUploadFailed, file.FileID, file.Name, err)
	}

	hlog.CtxInfof(ctx, "file %s (%s) uploaded, %d bytes to %s", file.FileID, file.Name, written, s.backend.Type())
	return file, nil
}

// GetFile returns the record for fileID visible under filter.
func (s *Service) GetFile(ctx context.Context, fileID string, filter db.ScopeFilter) (*model.File, error) {
	return s.logic.GetFile(ctx, fileID, filter)
}

// ListFiles returns records matching filter, newest first.
func (s *Service) ListFiles(ctx context.Context, filter db.ListFilter) ([]model.File, error) {
	return s.logic.ListFiles(ctx, filter)
}

// UpdateFile changes tags, reference, or project attachment. The scope of a
// file is fixed at creation: attaching a project to a SYSTEM or DOMAIN file
// is rejected.
func (s *Service) UpdateFile(ctx context.Context, fileID string, filter db.ScopeFilter, input *FileUpdateInput) (*model.File, error) {
	if input == nil {
		return nil, errors.New("input required")
	}
	file, err := s.logic.GetFile(ctx, fileID, filter)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Tags != nil {
		updates["tags"] = input.Tags
	}
	if input.ResourceType != nil {
		updates["resource_type"] = *input.ResourceType
	}
	if input.ResourceID != nil {
		updates["resource_id"] = *input.ResourceID
	}
	if input.ProjectID != nil {
		group := storage.Scope(file.ResourceGroup)
		if group == storage.ScopeSystem || group == storage.ScopeDomain {
			return nil, fmt.Errorf("%w (file_id = %s, resource_group = %s)", ErrChangeScope, fileID, file.ResourceGroup)
		}
		updates["project_id"] = *input.ProjectID
	}

	if err := s.logic.UpdateFile(ctx, fileID, updates); err != nil {
		return nil, err
	}
	return s.logic.GetFile(ctx, fileID, filter)
}

// DeleteFile removes the stored object first and the record second, so a
// failure can orphan a record but never an object. A record whose object is
// already gone still deletes cleanly.
func (s *Service) DeleteFile(ctx context.Context, fileID string, filter db.ScopeFilter) error {
	file, err := s.logic.GetFile(ctx, fileID, filter)
	if err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, storage.Scope(file.ResourceGroup), file.FileID); err != nil {
		return fmt.Errorf("%w (file_id = %s): %w", ErrFileDeleteFailed, fileID, err)
	}
	if err := s.logic.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("%w (file_id = %s): %w", ErrFileRecordDeleteFail, fileID, err)
	}
	_ = s.urls.Invalidate(ctx, file.DomainID, fileID)
	return nil
}

// DownloadFile opens a chunked stream of the file contents. The caller must
// close the returned stream.
func (s *Service) DownloadFile(ctx context.Context, fileID string, filter db.ScopeFilter) (*model.File, *transfer.Stream, error) {
	file, err := s.logic.GetFile(ctx, fileID, filter)
	if err != nil {
		return nil, nil, err
	}

	stream, err := s.transfer.DownloadStream(ctx, storage.Scope(file.ResourceGroup), file.FileID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (file_id = %s, name = %s): %w", ErrFileDownloadFailed, fileID, file.Name, err)
	}
	return file, stream, nil
}

// GetDownloadURL returns a presigned direct download URL, cached per
// (domain, file) so repeated requests within the TTL share one signature.
func (s *Service) GetDownloadURL(ctx context.Context, fileID string, filter db.ScopeFilter) (string, error) {
	file, err := s.logic.GetFile(ctx, fileID, filter)
	if err != nil {
		return "", err
	}

	signer, ok := s.backend.(storage.URLSigner)
	if !ok {
		return "", fmt.Errorf("%w (backend = %s)", ErrDownloadURLNotSupported, s.backend.Type())
	}

	// A URL must never be handed out for a record whose object is gone.
	present, err := s.backend.Exists(ctx, storage.Scope(file.ResourceGroup), file.FileID)
	if err != nil {
		return "", fmt.Errorf("check object presence: %w", err)
	}
	if !present {
		return "", fmt.Errorf("%w (file_id = %s)", storage.ErrObjectNotFound, fileID)
	}

	return s.urls.GetOrSign(ctx, file.DomainID, fileID, func(ctx context.Context) (string, error) {
		return signer.SignDownloadURL(ctx, storage.Scope(file.ResourceGroup), file.FileID, file.Name, s.urls.TTL())
	})
}

// validateScopeIDs enforces the identifiers each resource group requires.
func validateScopeIDs(input *FileAddInput) error {
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("%s is required for resource_group %s", field, input.ResourceGroup)
		}
		return nil
	}

	switch input.ResourceGroup {
	case storage.ScopeSystem:
		return nil
	case storage.ScopeDomain:
		return need("domain_id", input.DomainID)
	case storage.ScopeWorkspace:
		if err := need("domain_id", input.DomainID); err != nil {
			return err
		}
		return need("workspace_id", input.WorkspaceID)
	case storage.ScopeProject:
		if err := need("domain_id", input.DomainID); err != nil {
			return err
		}
		if err := need("workspace_id", input.WorkspaceID); err != nil {
			return err
		}
		return need("project_id", input.ProjectID)
	case storage.ScopeUser:
		if err := need("domain_id", input.DomainID); err != nil {
			return err
		}
		return need("user_id", input.UserID)
	}
	return fmt.Errorf("%w (resource_group = %s)", storage.ErrUnsupportedScope, input.ResourceGroup)
}

// fileTypeFromName derives the stored file type from the name's extension.
func fileTypeFromName(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return strings.ToLower(ext)
}
