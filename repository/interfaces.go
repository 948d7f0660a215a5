// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/clearsign-io/clearsign/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// OrganizationRepository defines operations for organizations
type OrganizationRepository interface {
	Repository[models.Organization, models.OrganizationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Organization, error)
	ListSyncable(ctx context.Context) ([]*models.Organization, error)
}

// DirectoryUserRepository defines operations for directory users
type DirectoryUserRepository interface {
	Repository[models.DirectoryUser, models.DirectoryUserFilter]
	ByUUID(ctx context.Context, uuid string) (*models.DirectoryUser, error)
	ByPrimaryEmail(ctx context.Context, email string) (*models.DirectoryUser, error)
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.DirectoryUser, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.DirectoryUser, error)
	ListDistinctDepartments(ctx context.Context, organizationID uint) ([]string, error)
	ListDistinctOrgUnitPaths(ctx context.Context, organizationID uint) ([]string, error)
}

// GroupRepository defines operations for static groups
type GroupRepository interface {
	Repository[models.Group, models.GroupFilter]
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.Group, error)
	ListMemberUserIDs(ctx context.Context, groupID uint) ([]uint, error)
	ListGroupIDsForUser(ctx context.Context, userID uint) ([]uint, error)
	CountMembers(ctx context.Context, groupID uint) (int64, error)
}

// DepartmentRepository defines operations for directory departments
type DepartmentRepository interface {
	Repository[models.Department, models.DepartmentFilter]
	ByName(ctx context.Context, organizationID uint, name string) (*models.Department, error)
	ListByOrganization(ctx context.Context, organizationID uint) ([]*models.Department, error)
}

// DynamicGroupRepository defines operations for rule-based groups
type DynamicGroupRepository interface {
	Repository[models.DynamicGroup, models.DynamicGroupFilter]
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.DynamicGroup, error)
}

// SignatureTemplateRepository defines operations for signature templates
type SignatureTemplateRepository interface {
	Repository[models.SignatureTemplate, models.SignatureTemplateFilter]
	ByUUID(ctx context.Context, uuid string) (*models.SignatureTemplate, error)
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.SignatureTemplate, error)
}

// SignatureAssignmentRepository defines operations for signature assignments
type SignatureAssignmentRepository interface {
	Repository[models.SignatureAssignment, models.SignatureAssignmentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.SignatureAssignment, error)
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.SignatureAssignment, error)
	ListByTemplate(ctx context.Context, templateID uint) ([]*models.SignatureAssignment, error)
	FindDuplicate(ctx context.Context, organizationID, templateID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*models.SignatureAssignment, error)
	Update(ctx context.Context, assignment *models.SignatureAssignment) error
	Delete(ctx context.Context, id uint) (bool, error)
}

// BannerCampaignRepository defines operations for banner campaigns
type BannerCampaignRepository interface {
	Repository[models.BannerCampaign, models.BannerCampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BannerCampaign, error)
	ListDueForActivation(ctx context.Context, now time.Time) ([]*models.BannerCampaign, error)
	ListDueForCompletion(ctx context.Context, now time.Time) ([]*models.BannerCampaign, error)
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.BannerCampaign, error)
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus, at time.Time) error
}

// SignatureSyncStatusRepository defines operations for per-user sync state.
// Rows are upserted on user_id and only ever transitioned, never deleted.
type SignatureSyncStatusRepository interface {
	Repository[models.SignatureSyncStatus, models.SignatureSyncStatusFilter]
	ByUserID(ctx context.Context, userID uint) (*models.SignatureSyncStatus, error)
	ByUserIDs(ctx context.Context, userIDs []uint) ([]*models.SignatureSyncStatus, error)
	Upsert(ctx context.Context, status *models.SignatureSyncStatus) error
	Update(ctx context.Context, status *models.SignatureSyncStatus) error
	MarkPending(ctx context.Context, rows []*models.SignatureSyncStatus) error
	CountByState(ctx context.Context, organizationID uint) (map[models.SyncState]int64, error)
	LastSyncedAt(ctx context.Context, organizationID uint) (*time.Time, error)
}
