package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yi-nology/filebridge/biz/dal/model"
)

// ScopeFilter narrows record lookups to the caller's visibility. Empty fields
// are not applied.
type ScopeFilter struct {
	DomainID    string
	WorkspaceID string
	ProjectID   string
	UserID      string
}

// ListFilter selects records for listing.
type ListFilter struct {
	ScopeFilter
	FileID        string
	Name          string
	ResourceGroup string
	FileType      string
	ResourceType  string
	ResourceID    string
}

// FileDAO handles CRUD operations for file metadata records.
type FileDAO struct{}

func NewFileDAO() *FileDAO { return &FileDAO{} }

func (dao *FileDAO) Create(ctx context.Context, db *gorm.DB, file *model.File) error {
	if file == nil {
		return errors.New("file must not be nil")
	}
	if file.FileID == "" {
		file.FileID = fmt.Sprintf("file-%s", uuid.NewString())
	}
	applyWildcards(file)
	return db.WithContext(ctx).Create(file).Error
}

func (dao *FileDAO) GetByFileID(ctx context.Context, db *gorm.DB, fileID string, filter ScopeFilter) (*model.File, error) {
	var file model.File
	query := applyScopeFilter(db.WithContext(ctx), filter).Where("file_id = ?", fileID)
	if err := query.First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// Update applies the supplied column changes. The updatable surface is
// restricted by the service layer; the DAO only guards against the record
// having vanished.
func (dao *FileDAO) Update(ctx context.Context, db *gorm.DB, fileID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := db.WithContext(ctx).
		Model(&model.File{}).
		Where("file_id = ?", fileID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (dao *FileDAO) DeleteByFileID(ctx context.Context, db *gorm.DB, fileID string) error {
	return db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&model.File{}).Error
}

func (dao *FileDAO) List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]model.File, error) {
	query := applyScopeFilter(db.WithContext(ctx), filter.ScopeFilter)
	if filter.FileID != "" {
		query = query.Where("file_id = ?", filter.FileID)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.ResourceGroup != "" {
		query = query.Where("resource_group = ?", filter.ResourceGroup)
	}
	if filter.FileType != "" {
		query = query.Where("file_type = ?", filter.FileType)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}

	var files []model.File
	if err := query.Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func applyScopeFilter(query *gorm.DB, filter ScopeFilter) *gorm.DB {
	if filter.DomainID != "" {
		query = query.Where("domain_id = ?", filter.DomainID)
	}
	if filter.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", filter.WorkspaceID)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	return query
}

// applyWildcards fills scope identifiers the record's resource group does not
// imply with the wildcard sentinel.
func applyWildcards(file *model.File) {
	if file.DomainID == "" {
		file.DomainID = model.WildcardID
	}
	if file.WorkspaceID == "" {
		file.WorkspaceID = model.WildcardID
	}
	if file.ProjectID == "" {
		file.ProjectID = model.WildcardID
	}
	if file.UserID == "" {
		file.UserID = model.WildcardID
	}
}
