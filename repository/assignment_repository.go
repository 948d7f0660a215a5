package repository

import (
	"context"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
)

// SignatureAssignmentRepositoryImpl implements the SignatureAssignmentRepository interface
type SignatureAssignmentRepositoryImpl struct {
	*BaseRepository[models.SignatureAssignment, models.SignatureAssignmentFilter]
}

// NewSignatureAssignmentRepository creates a new signature assignment repository
func NewSignatureAssignmentRepository(db *gorm.DB) SignatureAssignmentRepository {
	return &SignatureAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SignatureAssignment, models.SignatureAssignmentFilter](db),
	}
}

// ByUUID retrieves an assignment by UUID
func (r *SignatureAssignmentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.SignatureAssignment, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.SignatureAssignmentFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListActiveByOrganization retrieves all active assignments of an organization
func (r *SignatureAssignmentRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.SignatureAssignment, error) {
	filter := models.SignatureAssignmentFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "priority ASC, id ASC", 0, 0)
}

// ListByTemplate retrieves all assignments referencing a template
func (r *SignatureAssignmentRepositoryImpl) ListByTemplate(ctx context.Context, templateID uint) ([]*models.SignatureAssignment, error) {
	filter := models.SignatureAssignmentFilter{TemplateID: &templateID}
	return r.ByFilter(ctx, filter, "priority ASC, id ASC", 0, 0)
}

// FindDuplicate looks for an existing assignment with the same
// organization, template, type, and target, used for duplicate rejection
func (r *SignatureAssignmentRepositoryImpl) FindDuplicate(ctx context.Context, organizationID, templateID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*models.SignatureAssignment, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.SignatureAssignment{}).
		Where("organization_id = ? AND template_id = ? AND assignment_type = ?", organizationID, templateID, assignmentType)

	if targetID != nil {
		query = query.Where("target_id = ?", *targetID)
	} else {
		query = query.Where("target_id IS NULL")
	}
	if targetValue != nil {
		query = query.Where("target_value = ?", *targetValue)
	} else {
		query = query.Where("target_value IS NULL")
	}

	var rows []*models.SignatureAssignment
	if err := query.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update persists changes to an assignment
func (r *SignatureAssignmentRepositoryImpl) Update(ctx context.Context, assignment *models.SignatureAssignment) error {
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

	assignment.UpdatedAt = utils.UTCNow()
	err = db.Save(assignment).Error
	if err != nil {
		return err
	}

	return nil
}

// Delete removes an assignment, returning whether a row was deleted
func (r *SignatureAssignmentRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	res := db.Delete(&models.SignatureAssignment{}, id)
	if res.Error != nil {
		err = res.Error
		return false, err
	}

	return res.RowsAffected > 0, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SignatureAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.SignatureAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.AssignmentType != nil {
		query = query.Where("assignment_type = ?", *filter.AssignmentType)
	}
	if filter.TargetID != nil {
		query = query.Where("target_id = ?", *filter.TargetID)
	}
	if filter.TargetValue != nil {
		query = query.Where("target_value = ?", *filter.TargetValue)
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

// ByFilter retrieves assignments based on filter criteria
func (r *SignatureAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.SignatureAssignmentFilter, orderBy string, limit, offset int) ([]*models.SignatureAssignment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureAssignment{}), filter)

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

	query = query.Preload("Template")

	var rows []*models.SignatureAssignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of assignments matching the filter
func (r *SignatureAssignmentRepositoryImpl) Count(ctx context.Context, filter models.SignatureAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureAssignment{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any assignment matching the filter exists
func (r *SignatureAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.SignatureAssignmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
