package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// OrganizationRepositoryImpl implements the OrganizationRepository interface
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, models.OrganizationFilter]
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Organization, models.OrganizationFilter](db),
	}
}

// ByUUID retrieves an organization by UUID
func (r *OrganizationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Organization, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.OrganizationFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListSyncable retrieves active organizations with Google credentials
// configured and sync not explicitly disabled
func (r *OrganizationRepositoryImpl) ListSyncable(ctx context.Context) ([]*models.Organization, error) {
	filter := models.OrganizationFilter{
		GoogleConfigured: utils.ToPtr(true),
		SyncEnabled:      utils.ToPtr(true),
		IsActive:         utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *OrganizationRepositoryImpl) applyFilter(query *gorm.DB, filter models.OrganizationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Domain != nil {
		query = query.Where("domain = ?", *filter.Domain)
	}
	if filter.GoogleConfigured != nil {
		query = query.Where("google_configured = ?", *filter.GoogleConfigured)
	}
	if filter.SyncEnabled != nil {
		query = query.Where("sync_enabled = ?", *filter.SyncEnabled)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves organizations based on filter criteria
func (r *OrganizationRepositoryImpl) ByFilter(ctx context.Context, filter models.OrganizationFilter, orderBy string, limit, offset int) ([]*models.Organization, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Organization{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Organization
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of organizations matching the filter
func (r *OrganizationRepositoryImpl) Count(ctx context.Context, filter models.OrganizationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Organization{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any organization matching the filter exists
func (r *OrganizationRepositoryImpl) Exists(ctx context.Context, filter models.OrganizationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
