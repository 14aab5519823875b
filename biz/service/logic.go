package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yi-nology/filebridge/biz/dal/db"
	"github.com/yi-nology/filebridge/biz/dal/model"
)

var (
	ErrFileNotFound         = errors.New("file not found")
	ErrChangeScope          = errors.New("file scope cannot be changed")
	ErrFileUploadFailed     = errors.New("file upload failed")
	ErrFileDownloadFailed   = errors.New("file download failed")
	ErrFileDeleteFailed     = errors.New("file object delete failed")
	ErrFileRecordDeleteFail = errors.New("file record delete failed")
)

// Logic contains business rules on top of file metadata persistence.
type Logic struct {
	db      *gorm.DB
	fileDAO *db.FileDAO
}

func NewLogic(dbConn *gorm.DB) *Logic {
	return &Logic{
		db:      dbConn,
		fileDAO: db.NewFileDAO(),
	}
}

func (l *Logic) CreateFile(ctx context.Context, file *model.File) error {
	return l.fileDAO.Create(ctx, l.db, file)
}

func (l *Logic) GetFile(ctx context.Context, fileID string, filter db.ScopeFilter) (*model.File, error) {
	file, err := l.fileDAO.GetByFileID(ctx, l.db, fileID, filter)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	return file, err
}

func (l *Logic) UpdateFile(ctx context.Context, fileID string, updates map[string]any) error {
	if err := l.fileDAO.Update(ctx, l.db, fileID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	return nil
}

func (l *Logic) DeleteFile(ctx context.Context, fileID string) error {
	return l.fileDAO.DeleteByFileID(ctx, l.db, fileID)
}

func (l *Logic) ListFiles(ctx context.Context, filter db.ListFilter) ([]model.File, error) {
	return l.fileDAO.List(ctx, l.db, filter)
}
