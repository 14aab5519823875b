package model

import (
	"time"
)

// WildcardID marks scope identifiers not implied by a file's resource group.
const WildcardID = "*"

// FileReference links a file to the application resource that owns it.
type FileReference struct {
	ResourceType string `gorm:"column:resource_type;index:idx_file_resource" json:"resource_type,omitempty"`
	ResourceID   string `gorm:"column:resource_id;index:idx_file_resource" json:"resource_id,omitempty"`
}

// File stores the metadata record for one uploaded object. The file id is the
// only field participating in backend addressing; everything else is
// descriptive.
type File struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	FileID   string            `gorm:"column:file_id;uniqueIndex:idx_file_id" json:"file_id,omitempty"`
	Name     string            `gorm:"column:name;type:varchar(255)" json:"name,omitempty"`
	FileType string            `gorm:"column:file_type;type:varchar(32)" json:"file_type,omitempty"`
	Tags     map[string]string `gorm:"column:tags;serializer:json;type:text" json:"tags,omitempty"`

	Reference FileReference `gorm:"embedded" json:"reference,omitempty"`

	ResourceGroup string `gorm:"column:resource_group;type:varchar(40);index:idx_file_scope" json:"resource_group,omitempty"`
	DomainID      string `gorm:"column:domain_id;type:varchar(40);index:idx_file_domain" json:"domain_id,omitempty"`
	WorkspaceID   string `gorm:"column:workspace_id;type:varchar(40);index:idx_file_workspace" json:"workspace_id,omitempty"`
	ProjectID     string `gorm:"column:project_id;type:varchar(40);index:idx_file_project" json:"project_id,omitempty"`
	UserID        string `gorm:"column:user_id;type:varchar(40);index:idx_file_user" json:"user_id,omitempty"`
}

// TableName overrides gorm to use the file table.
func (File) TableName() string {
	return "file"
}
