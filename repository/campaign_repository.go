package repository

import (
	"context"
	"time"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// BannerCampaignRepositoryImpl implements the BannerCampaignRepository interface
type BannerCampaignRepositoryImpl struct {
	*BaseRepository[models.BannerCampaign, models.BannerCampaignFilter]
}

// NewBannerCampaignRepository creates a new banner campaign repository
func NewBannerCampaignRepository(db *gorm.DB) BannerCampaignRepository {
	return &BannerCampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BannerCampaign, models.BannerCampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *BannerCampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.BannerCampaign, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.BannerCampaignFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDueForActivation retrieves scheduled campaigns whose start time has passed
func (r *BannerCampaignRepositoryImpl) ListDueForActivation(ctx context.Context, now time.Time) ([]*models.BannerCampaign, error) {
	db := r.getDB(ctx)
	var rows []*models.BannerCampaign
	err := db.Model(&models.BannerCampaign{}).
		Where("status = ? AND start_at <= ?", models.CampaignStatusScheduled, now).
		Order("start_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDueForCompletion retrieves active campaigns whose end time has passed
func (r *BannerCampaignRepositoryImpl) ListDueForCompletion(ctx context.Context, now time.Time) ([]*models.BannerCampaign, error) {
	db := r.getDB(ctx)
	var rows []*models.BannerCampaign
	err := db.Model(&models.BannerCampaign{}).
		Where("status = ? AND end_at <= ?", models.CampaignStatusActive, now).
		Order("end_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveByOrganization retrieves the currently active campaigns of an organization
func (r *BannerCampaignRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.BannerCampaign, error) {
	status := models.CampaignStatusActive
	filter := models.BannerCampaignFilter{
		OrganizationID: &organizationID,
		Status:         &status,
	}
	return r.ByFilter(ctx, filter, "start_at DESC", 0, 0)
}

// UpdateStatus transitions a campaign's lifecycle state, stamping the
// matching lifecycle timestamp
func (r *BannerCampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus, at time.Time) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case models.CampaignStatusActive:
		updates["launched_at"] = at
	case models.CampaignStatusCompleted:
		updates["completed_at"] = at
	}

	err = db.Model(&models.BannerCampaign{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return err
	}

	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *BannerCampaignRepositoryImpl) applyFilter(query *gorm.DB, filter models.BannerCampaignFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartBefore != nil {
		query = query.Where("start_at <= ?", *filter.StartBefore)
	}
	if filter.EndBefore != nil {
		query = query.Where("end_at <= ?", *filter.EndBefore)
	}
	return query
}

// ByFilter retrieves campaigns based on filter criteria
func (r *BannerCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.BannerCampaignFilter, orderBy string, limit, offset int) ([]*models.BannerCampaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BannerCampaign{}), filter)

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

	var rows []*models.BannerCampaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of campaigns matching the filter
func (r *BannerCampaignRepositoryImpl) Count(ctx context.Context, filter models.BannerCampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BannerCampaign{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *BannerCampaignRepositoryImpl) Exists(ctx context.Context, filter models.BannerCampaignFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
