package dto

import "time"

// CreateCampaignRequest represents the request to create a banner campaign
type CreateCampaignRequest struct {
	OrganizationID uint      `json:"-"`
	CreatedBy      uint      `json:"-"`
	Name           string    `json:"name" validate:"required,min=1,max=255"`
	BannerURL      string    `json:"banner_url" validate:"required,url,max=1024"`
	BannerLink     *string   `json:"banner_link,omitempty" validate:"omitempty,url,max=1024"`
	BannerAltText  *string   `json:"banner_alt_text,omitempty" validate:"omitempty,max=255"`
	TargetType     string    `json:"target_type" validate:"required,oneof=organization group department"`
	TargetIDs      []int64   `json:"target_ids,omitempty"`
	TargetValues   []string  `json:"target_values,omitempty"`
	StartAt        time.Time `json:"start_at" validate:"required"`
	EndAt          time.Time `json:"end_at" validate:"required"`
}

// CreateCampaignResponse represents the response to create a banner campaign
type CreateCampaignResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// CampaignTransitionResponse reports a lifecycle transition and how many
// users it flipped to pending
type CampaignTransitionResponse struct {
	Message       string `json:"message"`
	CampaignID    uint   `json:"campaign_id"`
	Status        string `json:"status"`
	AffectedUsers int    `json:"affected_users"`
}
