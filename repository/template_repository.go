package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// SignatureTemplateRepositoryImpl implements the SignatureTemplateRepository interface
type SignatureTemplateRepositoryImpl struct {
	*BaseRepository[models.SignatureTemplate, models.SignatureTemplateFilter]
}

// NewSignatureTemplateRepository creates a new signature template repository
func NewSignatureTemplateRepository(db *gorm.DB) SignatureTemplateRepository {
	return &SignatureTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SignatureTemplate, models.SignatureTemplateFilter](db),
	}
}

// ByUUID retrieves a template by UUID
func (r *SignatureTemplateRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.SignatureTemplate, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.SignatureTemplateFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListActiveByOrganization retrieves all active templates of an organization
func (r *SignatureTemplateRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.SignatureTemplate, error) {
	filter := models.SignatureTemplateFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *SignatureTemplateRepositoryImpl) applyFilter(query *gorm.DB, filter models.SignatureTemplateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
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

// ByFilter retrieves templates based on filter criteria
func (r *SignatureTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.SignatureTemplateFilter, orderBy string, limit, offset int) ([]*models.SignatureTemplate, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureTemplate{}), filter)

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

	var rows []*models.SignatureTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of templates matching the filter
func (r *SignatureTemplateRepositoryImpl) Count(ctx context.Context, filter models.SignatureTemplateFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureTemplate{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any template matching the filter exists
func (r *SignatureTemplateRepositoryImpl) Exists(ctx context.Context, filter models.SignatureTemplateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
