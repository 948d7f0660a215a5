package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// SyncState enumerates the per-user signature convergence states
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSyncing SyncState = "syncing"
	SyncStateSynced  SyncState = "synced"
	SyncStateFailed  SyncState = "failed"
	SyncStateError   SyncState = "error"
	SyncStateSkipped SyncState = "skipped"
)

// String returns the string representation of the state
func (s SyncState) String() string {
	return string(s)
}

// Valid checks if the state is valid
func (s SyncState) Valid() bool {
	switch s {
	case SyncStatePending, SyncStateSyncing, SyncStateSynced,
		SyncStateFailed, SyncStateError, SyncStateSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state requires external intervention (a retry
// request or a fresh mark-pending) before the engine will touch the row again
func (s SyncState) Terminal() bool {
	return s == SyncStateFailed || s == SyncStateError
}

// Scan implements the sql.Scanner interface for SyncState
func (s *SyncState) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = SyncState(v)
	case []byte:
		*s = SyncState(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SyncState", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for SyncState
func (s SyncState) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SyncState: %s", s)
	}
	return string(s), nil
}

// SignatureSyncStatus is the per-user convergence record: one row per user,
// upserted lazily, mutated only by the sync engine, never deleted.
// Invariant: SyncState == synced implies SignatureHash equals the SHA-256 of
// RenderedHTML and both are present.
type SignatureSyncStatus struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	UserID         uint `gorm:"not null;uniqueIndex:uk_signature_sync_statuses_user_id" json:"user_id"`
	OrganizationID uint `gorm:"not null;index:idx_signature_sync_statuses_organization_id" json:"organization_id"`

	// Mirror of the last successful resolution, for audit
	CurrentTemplateID *uint   `gorm:"index:idx_signature_sync_statuses_current_template_id" json:"current_template_id,omitempty"`
	AssignmentID      *uint   `json:"assignment_id,omitempty"`
	AssignmentSource  *string `gorm:"size:32" json:"assignment_source,omitempty"`
	RenderedHTML      *string `gorm:"type:text" json:"rendered_html,omitempty"`
	SignatureHash     *string `gorm:"size:64" json:"signature_hash,omitempty"`

	SyncState         SyncState  `gorm:"type:sync_state;not null;default:'pending';index:idx_signature_sync_statuses_sync_state" json:"sync_state"`
	SyncError         *string    `gorm:"type:text" json:"sync_error,omitempty"`
	SyncAttempts      int        `gorm:"default:0" json:"sync_attempts"`
	LastSyncedAt      *time.Time `gorm:"index:idx_signature_sync_statuses_last_synced_at" json:"last_synced_at,omitempty"`
	LastSyncAttemptAt *time.Time `json:"last_sync_attempt_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SignatureSyncStatus) TableName() string {
	return "signature_sync_statuses"
}

// NeedsSync reports whether the batch coordinator should pick this row up.
// Error rows are excluded: they mark data problems that retrying cannot fix,
// and only a fresh mark-pending re-queues them.
func (s *SignatureSyncStatus) NeedsSync(maxRetries int) bool {
	if s == nil {
		return true // no row yet: first sync attempt creates it
	}
	switch s.SyncState {
	case SyncStatePending:
		return true
	case SyncStateFailed:
		return s.SyncAttempts < maxRetries
	default:
		return false
	}
}

// SignatureSyncStatusFilter represents filter criteria for sync status queries
type SignatureSyncStatusFilter struct {
	ID                *uint
	UserID            *uint
	OrganizationID    *uint
	SyncState         *SyncState
	CurrentTemplateID *uint
	SyncedAfter       *time.Time
	SyncedBefore      *time.Time
}

// EffectiveSourceCampaign is the assignment source recorded when a campaign
// banner override won the resolution
const EffectiveSourceCampaign = "campaign"

// EffectiveSignature is the derived per-user resolution result. It is
// recomputed on demand and never persisted as a source of truth.
type EffectiveSignature struct {
	UserID         uint            `json:"user_id"`
	OrganizationID uint            `json:"organization_id"`
	AssignmentID   *uint           `json:"assignment_id,omitempty"`
	TemplateID     *uint           `json:"template_id,omitempty"`
	Source         string          `json:"source"`
	Banner         *CampaignBanner `json:"banner,omitempty"`
}
