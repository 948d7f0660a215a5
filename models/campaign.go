package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CampaignStatus represents the lifecycle state of a banner campaign
type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusScheduled, CampaignStatusActive,
		CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CampaignTargetType enumerates which user sets a campaign banner applies to
type CampaignTargetType string

const (
	CampaignTargetOrganization CampaignTargetType = "organization"
	CampaignTargetGroup        CampaignTargetType = "group"
	CampaignTargetDepartment   CampaignTargetType = "department"
)

// Valid checks if the target type is valid
func (t CampaignTargetType) Valid() bool {
	switch t {
	case CampaignTargetOrganization, CampaignTargetGroup, CampaignTargetDepartment:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignTargetType
func (t *CampaignTargetType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*t = CampaignTargetType(v)
	case []byte:
		*t = CampaignTargetType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignTargetType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CampaignTargetType
func (t CampaignTargetType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid CampaignTargetType: %s", t)
	}
	return string(t), nil
}

// BannerCampaign represents a time-boxed promotional banner overlaid on the
// effective signature of every targeted user while active
type BannerCampaign struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_banner_campaigns_uuid;index:idx_banner_campaigns_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_banner_campaigns_organization_id" json:"organization_id"`

	Name          string  `gorm:"size:255;not null" json:"name"`
	BannerURL     string  `gorm:"size:1024;not null" json:"banner_url"`
	BannerLink    *string `gorm:"size:1024" json:"banner_link,omitempty"`
	BannerAltText *string `gorm:"size:255" json:"banner_alt_text,omitempty"`

	TargetType   CampaignTargetType `gorm:"type:campaign_target_type;not null" json:"target_type"`
	TargetIDs    pq.Int64Array      `gorm:"type:bigint[]" json:"target_ids,omitempty"`
	TargetValues pq.StringArray     `gorm:"type:text[]" json:"target_values,omitempty"`

	StartAt time.Time      `gorm:"not null;index:idx_banner_campaigns_start_at" json:"start_at"`
	EndAt   time.Time      `gorm:"not null;index:idx_banner_campaigns_end_at" json:"end_at"`
	Status  CampaignStatus `gorm:"type:campaign_status;not null;default:'scheduled';index:idx_banner_campaigns_status" json:"status"`

	LaunchedAt  *time.Time `json:"launched_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedBy uint      `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_banner_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (BannerCampaign) TableName() string {
	return "banner_campaigns"
}

// Banner extracts the overlay fields carried onto an effective signature
func (c *BannerCampaign) Banner() *CampaignBanner {
	if c == nil {
		return nil
	}
	return &CampaignBanner{
		CampaignID: c.ID,
		URL:        c.BannerURL,
		Link:       c.BannerLink,
		AltText:    c.BannerAltText,
	}
}

// CampaignBanner is the validated banner payload overlaid on a resolved
// signature; a typed struct rather than an opaque JSON blob
type CampaignBanner struct {
	CampaignID uint    `json:"campaign_id"`
	URL        string  `json:"url"`
	Link       *string `json:"link,omitempty"`
	AltText    *string `json:"alt_text,omitempty"`
}

// BannerCampaignFilter represents filter criteria for campaign queries
type BannerCampaignFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Status         *CampaignStatus
	StartBefore    *time.Time
	EndBefore      *time.Time
}
