package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// DirectoryUserRepositoryImpl implements the DirectoryUserRepository interface
type DirectoryUserRepositoryImpl struct {
	*BaseRepository[models.DirectoryUser, models.DirectoryUserFilter]
}

// NewDirectoryUserRepository creates a new directory user repository
func NewDirectoryUserRepository(db *gorm.DB) DirectoryUserRepository {
	return &DirectoryUserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DirectoryUser, models.DirectoryUserFilter](db),
	}
}

// ByUUID retrieves a directory user by UUID
func (r *DirectoryUserRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.DirectoryUser, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.DirectoryUserFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByPrimaryEmail retrieves a directory user by primary email
func (r *DirectoryUserRepositoryImpl) ByPrimaryEmail(ctx context.Context, email string) (*models.DirectoryUser, error) {
	filter := models.DirectoryUserFilter{PrimaryEmail: &email}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListActiveByOrganization retrieves all active users of an organization
func (r *DirectoryUserRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.DirectoryUser, error) {
	filter := models.DirectoryUserFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// ListByIDs retrieves users for a list of IDs
func (r *DirectoryUserRepositoryImpl) ListByIDs(ctx context.Context, ids []uint) ([]*models.DirectoryUser, error) {
	if len(ids) == 0 {
		return []*models.DirectoryUser{}, nil
	}
	db := r.getDB(ctx)
	var rows []*models.DirectoryUser
	if err := db.Model(&models.DirectoryUser{}).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDistinctDepartments lists the department values present in an
// organization's synced directory data
func (r *DirectoryUserRepositoryImpl) ListDistinctDepartments(ctx context.Context, organizationID uint) ([]string, error) {
	db := r.getDB(ctx)
	var rows []string
	err := db.Model(&models.DirectoryUser{}).
		Where("organization_id = ? AND department IS NOT NULL AND department <> ''", organizationID).
		Distinct("department").
		Order("department ASC").
		Pluck("department", &rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDistinctOrgUnitPaths lists the OU paths present in an organization's
// synced directory data
func (r *DirectoryUserRepositoryImpl) ListDistinctOrgUnitPaths(ctx context.Context, organizationID uint) ([]string, error) {
	db := r.getDB(ctx)
	var rows []string
	err := db.Model(&models.DirectoryUser{}).
		Where("organization_id = ? AND org_unit_path IS NOT NULL AND org_unit_path <> ''", organizationID).
		Distinct("org_unit_path").
		Order("org_unit_path ASC").
		Pluck("org_unit_path", &rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *DirectoryUserRepositoryImpl) applyFilter(query *gorm.DB, filter models.DirectoryUserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.PrimaryEmail != nil {
		query = query.Where("primary_email = ?", *filter.PrimaryEmail)
	}
	if filter.Department != nil {
		query = query.Where("department = ?", *filter.Department)
	}
	if filter.OrgUnitPath != nil {
		query = query.Where("org_unit_path = ?", *filter.OrgUnitPath)
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

// ByFilter retrieves directory users based on filter criteria
func (r *DirectoryUserRepositoryImpl) ByFilter(ctx context.Context, filter models.DirectoryUserFilter, orderBy string, limit, offset int) ([]*models.DirectoryUser, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DirectoryUser{}), filter)

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

	var rows []*models.DirectoryUser
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of directory users matching the filter
func (r *DirectoryUserRepositoryImpl) Count(ctx context.Context, filter models.DirectoryUserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DirectoryUser{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any directory user matching the filter exists
func (r *DirectoryUserRepositoryImpl) Exists(ctx context.Context, filter models.DirectoryUserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
