package models

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryUser represents a mailbox-owning user synced from the directory
type DirectoryUser struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_directory_users_uuid;index:idx_directory_users_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_directory_users_organization_id" json:"organization_id"`

	PrimaryEmail string  `gorm:"size:255;not null;uniqueIndex:uk_directory_users_primary_email" json:"primary_email"`
	FirstName    string  `gorm:"size:255;not null" json:"first_name"`
	LastName     string  `gorm:"size:255;not null" json:"last_name"`
	JobTitle     *string `gorm:"size:255" json:"job_title,omitempty"`
	Phone        *string `gorm:"size:32" json:"phone,omitempty"`

	// Directory placement used by department and OU assignment targeting
	Department  *string `gorm:"size:255;index:idx_directory_users_department" json:"department,omitempty"`
	OrgUnitPath *string `gorm:"size:512;index:idx_directory_users_org_unit_path" json:"org_unit_path,omitempty"`

	IsActive *bool `gorm:"default:true;index:idx_directory_users_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_directory_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Organization *Organization        `gorm:"foreignKey:OrganizationID;references:ID" json:"-"`
	SyncStatus   *SignatureSyncStatus `gorm:"foreignKey:UserID" json:"sync_status,omitempty"`
}

func (DirectoryUser) TableName() string {
	return "directory_users"
}

// FullName returns the user's display name used in rendered signatures
func (u *DirectoryUser) FullName() string {
	return u.FirstName + " " + u.LastName
}

// DirectoryUserFilter represents filter criteria for directory user queries
type DirectoryUserFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	PrimaryEmail   *string
	Department     *string
	OrgUnitPath    *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
