// Package models contains domain entities and business models for the signature management system
package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant whose users receive managed signatures
type Organization struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid;index:idx_organizations_uuid" json:"uuid"`

	Name   string `gorm:"size:255;not null" json:"name"`
	Domain string `gorm:"size:255;not null;uniqueIndex:uk_organizations_domain" json:"domain"`

	// Google Workspace linkage. GoogleConfigured is the scheduler's gate:
	// organizations without provider credentials are skipped entirely.
	GoogleCustomerID *string `gorm:"size:64" json:"google_customer_id,omitempty"`
	GoogleConfigured *bool   `gorm:"default:false;index:idx_organizations_google_configured" json:"google_configured"`

	SyncEnabled *bool `gorm:"default:true;index:idx_organizations_sync_enabled" json:"sync_enabled"`
	IsActive    *bool `gorm:"default:true;index:idx_organizations_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_organizations_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Users       []DirectoryUser       `gorm:"foreignKey:OrganizationID" json:"-"`
	Templates   []SignatureTemplate   `gorm:"foreignKey:OrganizationID" json:"-"`
	Assignments []SignatureAssignment `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

// IsSyncable reports whether the scheduler should include this organization
// in a sync cycle
func (o *Organization) IsSyncable() bool {
	if o == nil {
		return false
	}
	if o.IsActive != nil && !*o.IsActive {
		return false
	}
	if o.SyncEnabled != nil && !*o.SyncEnabled {
		return false
	}
	return o.GoogleConfigured != nil && *o.GoogleConfigured
}

// OrganizationFilter represents filter criteria for organization queries
type OrganizationFilter struct {
	ID               *uint
	UUID             *uuid.UUID
	Domain           *string
	GoogleConfigured *bool
	SyncEnabled      *bool
	IsActive         *bool
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}
