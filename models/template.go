package models

import (
	"time"

	"github.com/google/uuid"
)

// SignatureTemplate represents an HTML signature template with
// {{placeholder}} fields substituted per user at render time
type SignatureTemplate struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_signature_templates_uuid;index:idx_signature_templates_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_signature_templates_organization_id" json:"organization_id"`

	Name string `gorm:"size:255;not null" json:"name"`
	HTML string `gorm:"type:text;not null" json:"html"`

	IsActive *bool `gorm:"default:true;index:idx_signature_templates_is_active" json:"is_active"`

	CreatedBy *uint     `gorm:"index:idx_signature_templates_created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_signature_templates_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SignatureTemplate) TableName() string {
	return "signature_templates"
}

// SignatureTemplateFilter represents filter criteria for template queries
type SignatureTemplateFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Name           *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
