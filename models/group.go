package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DynamicRuleField enumerates the directory attributes a dynamic group rule
// may match against
type DynamicRuleField string

const (
	DynamicRuleFieldDepartment DynamicRuleField = "department"
	DynamicRuleFieldOrgUnit    DynamicRuleField = "org_unit"
	DynamicRuleFieldJobTitle   DynamicRuleField = "job_title"
)

// String returns the string representation of the rule field
func (f DynamicRuleField) String() string {
	return string(f)
}

// Valid checks if the rule field is valid
func (f DynamicRuleField) Valid() bool {
	switch f {
	case DynamicRuleFieldDepartment, DynamicRuleFieldOrgUnit, DynamicRuleFieldJobTitle:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DynamicRuleField
func (f *DynamicRuleField) Scan(value any) error {
	if value == nil {
		*f = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*f = DynamicRuleField(v)
	case []byte:
		*f = DynamicRuleField(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DynamicRuleField", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for DynamicRuleField
func (f DynamicRuleField) Value() (driver.Value, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid DynamicRuleField: %s", f)
	}
	return string(f), nil
}

// DynamicRuleOperator enumerates how rule values are compared
type DynamicRuleOperator string

const (
	DynamicRuleOperatorEquals DynamicRuleOperator = "equals"
	DynamicRuleOperatorPrefix DynamicRuleOperator = "prefix"
	DynamicRuleOperatorIn     DynamicRuleOperator = "in"
)

// Valid checks if the rule operator is valid
func (o DynamicRuleOperator) Valid() bool {
	switch o {
	case DynamicRuleOperatorEquals, DynamicRuleOperatorPrefix, DynamicRuleOperatorIn:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DynamicRuleOperator
func (o *DynamicRuleOperator) Scan(value any) error {
	if value == nil {
		*o = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*o = DynamicRuleOperator(v)
	case []byte:
		*o = DynamicRuleOperator(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DynamicRuleOperator", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for DynamicRuleOperator
func (o DynamicRuleOperator) Value() (driver.Value, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid DynamicRuleOperator: %s", o)
	}
	return string(o), nil
}

// Group represents a static directory group with explicit membership
type Group struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_groups_uuid;index:idx_groups_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_groups_organization_id" json:"organization_id"`

	Name  string  `gorm:"size:255;not null" json:"name"`
	Email *string `gorm:"size:255" json:"email,omitempty"`

	IsActive *bool `gorm:"default:true;index:idx_groups_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_groups_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMember binds a directory user to a static group
type GroupMember struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	GroupID uint `gorm:"not null;uniqueIndex:uk_group_members_group_user;index:idx_group_members_group_id" json:"group_id"`
	UserID  uint `gorm:"not null;uniqueIndex:uk_group_members_group_user;index:idx_group_members_user_id" json:"user_id"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	User *DirectoryUser `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// DynamicGroup represents a group whose membership is computed from a
// directory attribute rule rather than stored rows
type DynamicGroup struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_dynamic_groups_uuid;index:idx_dynamic_groups_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_dynamic_groups_organization_id" json:"organization_id"`

	Name string `gorm:"size:255;not null" json:"name"`

	RuleField    DynamicRuleField    `gorm:"type:dynamic_rule_field;not null" json:"rule_field"`
	RuleOperator DynamicRuleOperator `gorm:"type:dynamic_rule_operator;not null" json:"rule_operator"`
	RuleValues   pq.StringArray      `gorm:"type:text[];not null" json:"rule_values"`

	IsActive *bool `gorm:"default:true;index:idx_dynamic_groups_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_dynamic_groups_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DynamicGroup) TableName() string {
	return "dynamic_groups"
}

// Matches evaluates the group's rule against a directory user
func (g *DynamicGroup) Matches(user *DirectoryUser) bool {
	if g == nil || user == nil {
		return false
	}

	var attr string
	switch g.RuleField {
	case DynamicRuleFieldDepartment:
		if user.Department == nil {
			return false
		}
		attr = *user.Department
	case DynamicRuleFieldOrgUnit:
		if user.OrgUnitPath == nil {
			return false
		}
		attr = *user.OrgUnitPath
	case DynamicRuleFieldJobTitle:
		if user.JobTitle == nil {
			return false
		}
		attr = *user.JobTitle
	default:
		return false
	}
	if attr == "" {
		return false
	}

	switch g.RuleOperator {
	case DynamicRuleOperatorEquals:
		return len(g.RuleValues) > 0 && attr == g.RuleValues[0]
	case DynamicRuleOperatorPrefix:
		return len(g.RuleValues) > 0 && MatchesOUPath(attr, g.RuleValues[0])
	case DynamicRuleOperatorIn:
		for _, v := range g.RuleValues {
			if attr == v {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MatchesOUPath matches either the exact OU path or a proper sub-path, so
// the prefix "/Eng" does not match "/Engineering"
func MatchesOUPath(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return prefix[len(prefix)-1] == '/' || path[len(prefix)] == '/'
	}
	return false
}

// GroupFilter represents filter criteria for group queries
type GroupFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Name           *string
	IsActive       *bool
}

// DynamicGroupFilter represents filter criteria for dynamic group queries
type DynamicGroupFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Name           *string
	IsActive       *bool
}
