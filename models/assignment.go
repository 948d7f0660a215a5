package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssignmentType enumerates the targets a signature assignment may bind to
type AssignmentType string

const (
	AssignmentTypeUser         AssignmentType = "user"
	AssignmentTypeGroup        AssignmentType = "group"
	AssignmentTypeDynamicGroup AssignmentType = "dynamic_group"
	AssignmentTypeDepartment   AssignmentType = "department"
	AssignmentTypeOU           AssignmentType = "ou"
	AssignmentTypeOrganization AssignmentType = "organization"
)

// String returns the string representation of the assignment type
func (t AssignmentType) String() string {
	return string(t)
}

// Valid checks if the assignment type is valid
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentTypeUser, AssignmentTypeGroup, AssignmentTypeDynamicGroup,
		AssignmentTypeDepartment, AssignmentTypeOU, AssignmentTypeOrganization:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AssignmentType
func (t *AssignmentType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*t = AssignmentType(v)
	case []byte:
		*t = AssignmentType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssignmentType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AssignmentType
func (t AssignmentType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid AssignmentType: %s", t)
	}
	return string(t), nil
}

// DefaultPriority returns the priority applied when a caller omits one.
// Lower integers take precedence during resolution.
func (t AssignmentType) DefaultPriority() int {
	switch t {
	case AssignmentTypeUser:
		return 10
	case AssignmentTypeDynamicGroup:
		return 20
	case AssignmentTypeGroup:
		return 30
	case AssignmentTypeDepartment:
		return 40
	case AssignmentTypeOU:
		return 50
	case AssignmentTypeOrganization:
		return 100
	default:
		return 100
	}
}

// RequiresTargetID reports whether the type addresses its target by row ID
func (t AssignmentType) RequiresTargetID() bool {
	switch t {
	case AssignmentTypeUser, AssignmentTypeGroup, AssignmentTypeDynamicGroup, AssignmentTypeDepartment:
		return true
	default:
		return false
	}
}

// RequiresTargetValue reports whether the type addresses its target by a
// string value (currently only OU paths)
func (t AssignmentType) RequiresTargetValue() bool {
	return t == AssignmentTypeOU
}

// SignatureAssignment binds a template to a target with a priority.
// Exactly one of TargetID / TargetValue is meaningful depending on the type;
// the organization catch-all carries neither.
type SignatureAssignment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_signature_assignments_uuid;index:idx_signature_assignments_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_signature_assignments_organization_id" json:"organization_id"`
	TemplateID     uint      `gorm:"not null;index:idx_signature_assignments_template_id" json:"template_id"`

	AssignmentType AssignmentType `gorm:"type:assignment_type;not null;index:idx_signature_assignments_type" json:"assignment_type"`
	TargetID       *uint          `gorm:"index:idx_signature_assignments_target_id" json:"target_id,omitempty"`
	TargetValue    *string        `gorm:"size:512;index:idx_signature_assignments_target_value" json:"target_value,omitempty"`

	Priority int   `gorm:"not null;index:idx_signature_assignments_priority" json:"priority"`
	IsActive *bool `gorm:"default:true;index:idx_signature_assignments_is_active" json:"is_active"`

	CreatedBy uint      `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_signature_assignments_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Template *SignatureTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
}

func (SignatureAssignment) TableName() string {
	return "signature_assignments"
}

// SignatureAssignmentFilter represents filter criteria for assignment queries
type SignatureAssignmentFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	TemplateID     *uint
	AssignmentType *AssignmentType
	TargetID       *uint
	TargetValue    *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
