package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"gorm.io/gorm"
)

// DepartmentRepositoryImpl implements the DepartmentRepository interface
type DepartmentRepositoryImpl struct {
	*BaseRepository[models.Department, models.DepartmentFilter]
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &DepartmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Department, models.DepartmentFilter](db),
	}
}

// ByName retrieves a department by name within an organization
func (r *DepartmentRepositoryImpl) ByName(ctx context.Context, organizationID uint, name string) (*models.Department, error) {
	filter := models.DepartmentFilter{
		OrganizationID: &organizationID,
		Name:           &name,
	}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListByOrganization retrieves all departments of an organization
func (r *DepartmentRepositoryImpl) ListByOrganization(ctx context.Context, organizationID uint) ([]*models.Department, error) {
	filter := models.DepartmentFilter{OrganizationID: &organizationID}
	return r.ByFilter(ctx, filter, "name ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *DepartmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.DepartmentFilter) *gorm.DB {
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
	return query
}

// ByFilter retrieves departments based on filter criteria
func (r *DepartmentRepositoryImpl) ByFilter(ctx context.Context, filter models.DepartmentFilter, orderBy string, limit, offset int) ([]*models.Department, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Department{}), filter)

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

	var rows []*models.Department
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of departments matching the filter
func (r *DepartmentRepositoryImpl) Count(ctx context.Context, filter models.DepartmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Department{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any department matching the filter exists
func (r *DepartmentRepositoryImpl) Exists(ctx context.Context, filter models.DepartmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
