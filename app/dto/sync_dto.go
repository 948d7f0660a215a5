package dto

// SyncResultDTO is the outcome of a single user's sync attempt. Every branch
// of the engine produces one of these; failures are data, not panics.
type SyncResultDTO struct {
	Success   bool   `json:"success"`
	UserID    uint   `json:"user_id"`
	UserEmail string `json:"user_email"`
	Status    string `json:"status"`
	Error     *string `json:"error,omitempty"`
}

// BatchSyncResponse aggregates an organization-wide sync run
type BatchSyncResponse struct {
	Message      string          `json:"message"`
	TotalUsers   int             `json:"total_users"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	SkippedCount int             `json:"skipped_count"`
	Results      []SyncResultDTO `json:"results"`
}

// SyncSummaryResponse reports an organization's convergence counters
type SyncSummaryResponse struct {
	Message      string  `json:"message"`
	TotalUsers   int64   `json:"total_users"`
	Pending      int64   `json:"pending"`
	Syncing      int64   `json:"syncing"`
	Synced       int64   `json:"synced"`
	Failed       int64   `json:"failed"`
	Errored      int64   `json:"errored"`
	Skipped      int64   `json:"skipped"`
	LastSyncedAt *string `json:"last_synced_at,omitempty"`
}

// UserSyncStatusDTO is the outward representation of a user's sync row
type UserSyncStatusDTO struct {
	UserID            uint    `json:"user_id"`
	UserEmail         string  `json:"user_email"`
	OrganizationID    uint    `json:"organization_id"`
	CurrentTemplateID *uint   `json:"current_template_id,omitempty"`
	AssignmentSource  *string `json:"assignment_source,omitempty"`
	SyncState         string  `json:"sync_state"`
	SyncError         *string `json:"sync_error,omitempty"`
	SyncAttempts      int     `json:"sync_attempts"`
	SignatureHash     *string `json:"signature_hash,omitempty"`
	LastSyncedAt      *string `json:"last_synced_at,omitempty"`
	LastSyncAttemptAt *string `json:"last_sync_attempt_at,omitempty"`
}

// ListUserSyncStatusesRequest represents filters for listing per-user sync rows
type ListUserSyncStatusesRequest struct {
	OrganizationID uint    `json:"-"`
	SyncState      *string `json:"sync_state,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
}

// ListUserSyncStatusesResponse represents the response to list sync rows
type ListUserSyncStatusesResponse struct {
	Message string              `json:"message"`
	Items   []UserSyncStatusDTO `json:"items"`
	Total   int64               `json:"total"`
}

// EffectiveSignatureDTO is the outward representation of a resolution result
type EffectiveSignatureDTO struct {
	UserID         uint    `json:"user_id"`
	OrganizationID uint    `json:"organization_id"`
	AssignmentID   *uint   `json:"assignment_id,omitempty"`
	TemplateID     *uint   `json:"template_id,omitempty"`
	Source         string  `json:"source"`
	BannerURL      *string `json:"banner_url,omitempty"`
	BannerLink     *string `json:"banner_link,omitempty"`
	BannerAltText  *string `json:"banner_alt_text,omitempty"`
}
