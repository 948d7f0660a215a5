package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// GroupRepositoryImpl implements the GroupRepository interface
type GroupRepositoryImpl struct {
	*BaseRepository[models.Group, models.GroupFilter]
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &GroupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Group, models.GroupFilter](db),
	}
}

// ListActiveByOrganization retrieves all active static groups of an organization
func (r *GroupRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.Group, error) {
	filter := models.GroupFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// ListMemberUserIDs lists the user IDs belonging to a static group
func (r *GroupRepositoryImpl) ListMemberUserIDs(ctx context.Context, groupID uint) ([]uint, error) {
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListGroupIDsForUser lists the static groups a user belongs to
func (r *GroupRepositoryImpl) ListGroupIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	db := r.getDB(ctx)
	var ids []uint
	err := db.Model(&models.GroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountMembers returns the member count of a static group
func (r *GroupRepositoryImpl) CountMembers(ctx context.Context, groupID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *GroupRepositoryImpl) applyFilter(query *gorm.DB, filter models.GroupFilter) *gorm.DB {
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
	return query
}

// ByFilter retrieves groups based on filter criteria
func (r *GroupRepositoryImpl) ByFilter(ctx context.Context, filter models.GroupFilter, orderBy string, limit, offset int) ([]*models.Group, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Group{}), filter)

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

	var rows []*models.Group
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of groups matching the filter
func (r *GroupRepositoryImpl) Count(ctx context.Context, filter models.GroupFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Group{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any group matching the filter exists
func (r *GroupRepositoryImpl) Exists(ctx context.Context, filter models.GroupFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// DynamicGroupRepositoryImpl implements the DynamicGroupRepository interface
type DynamicGroupRepositoryImpl struct {
	*BaseRepository[models.DynamicGroup, models.DynamicGroupFilter]
}

// NewDynamicGroupRepository creates a new dynamic group repository
func NewDynamicGroupRepository(db *gorm.DB) DynamicGroupRepository {
	return &DynamicGroupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DynamicGroup, models.DynamicGroupFilter](db),
	}
}

// ListActiveByOrganization retrieves all active dynamic groups of an organization
func (r *DynamicGroupRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.DynamicGroup, error) {
	filter := models.DynamicGroupFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *DynamicGroupRepositoryImpl) applyFilter(query *gorm.DB, filter models.DynamicGroupFilter) *gorm.DB {
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
	return query
}

// ByFilter retrieves dynamic groups based on filter criteria
func (r *DynamicGroupRepositoryImpl) ByFilter(ctx context.Context, filter models.DynamicGroupFilter, orderBy string, limit, offset int) ([]*models.DynamicGroup, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DynamicGroup{}), filter)

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

	var rows []*models.DynamicGroup
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of dynamic groups matching the filter
func (r *DynamicGroupRepositoryImpl) Count(ctx context.Context, filter models.DynamicGroupFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DynamicGroup{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any dynamic group matching the filter exists
func (r *DynamicGroupRepositoryImpl) Exists(ctx context.Context, filter models.DynamicGroupFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
