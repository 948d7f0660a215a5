package models

import (
	"time"

	"github.com/google/uuid"
)

// Department represents a named department row synced from the directory.
// Users reference it by name through their department attribute.
type Department struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_departments_uuid;index:idx_departments_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_departments_organization_id;uniqueIndex:uk_departments_org_name" json:"organization_id"`

	Name string `gorm:"size:255;not null;uniqueIndex:uk_departments_org_name" json:"name"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Department) TableName() string {
	return "departments"
}

// DepartmentFilter represents filter criteria for department queries
type DepartmentFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Name           *string
}
