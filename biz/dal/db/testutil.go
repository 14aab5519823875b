package db

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yi-nology/filebridge/biz/dal/model"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce log noise in tests
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&model.File{}); err != nil {
		t.Fatalf("Failed to migrate tables: %v", err)
	}

	return db
}

// CleanupTestDB closes the database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close DB: %v", err)
	}
}

// CreateTestFile creates a file record with default values
func CreateTestFile(t *testing.T, db *gorm.DB, name, resourceGroup, domainID, workspaceID string) *model.File {
	t.Helper()
	dao := NewFileDAO()
	file := &model.File{
		Name:          name,
		FileType:      "txt",
		ResourceGroup: resourceGroup,
		DomainID:      domainID,
		WorkspaceID:   workspaceID,
	}
	if err := dao.Create(context.Background(), db, file); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return file
}
