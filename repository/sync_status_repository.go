package repository

import (
	"context"
	"time"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignatureSyncStatusRepositoryImpl implements the SignatureSyncStatusRepository interface
type SignatureSyncStatusRepositoryImpl struct {
	*BaseRepository[models.SignatureSyncStatus, models.SignatureSyncStatusFilter]
}

// NewSignatureSyncStatusRepository creates a new sync status repository
func NewSignatureSyncStatusRepository(db *gorm.DB) SignatureSyncStatusRepository {
	return &SignatureSyncStatusRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SignatureSyncStatus, models.SignatureSyncStatusFilter](db),
	}
}

// ByUserID retrieves the sync status row of a user
func (r *SignatureSyncStatusRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.SignatureSyncStatus, error) {
	filter := models.SignatureSyncStatusFilter{UserID: &userID}
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByUserIDs retrieves sync status rows for a set of users
func (r *SignatureSyncStatusRepositoryImpl) ByUserIDs(ctx context.Context, userIDs []uint) ([]*models.SignatureSyncStatus, error) {
	if len(userIDs) == 0 {
		return []*models.SignatureSyncStatus{}, nil
	}
	db := r.getDB(ctx)
	var rows []*models.SignatureSyncStatus
	if err := db.Model(&models.SignatureSyncStatus{}).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert inserts or fully replaces a user's sync status row (one row per
// user, keyed on user_id)
func (r *SignatureSyncStatusRepositoryImpl) Upsert(ctx context.Context, status *models.SignatureSyncStatus) error {
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

	status.UpdatedAt = utils.UTCNow()
	if status.ID != 0 {
		// Row was loaded from the database; a plain save avoids a conflict on
		// the primary key that the user_id arbiter cannot resolve
		err = db.Save(status).Error
	} else {
		err = db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_template_id", "assignment_id", "assignment_source",
				"rendered_html", "signature_hash", "sync_state", "sync_error",
				"sync_attempts", "last_synced_at", "last_sync_attempt_at", "updated_at",
			}),
		}).Create(status).Error
	}
	if err != nil {
		return err
	}

	return nil
}

// Update persists changes to an existing sync status row
func (r *SignatureSyncStatusRepositoryImpl) Update(ctx context.Context, status *models.SignatureSyncStatus) error {
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

	status.UpdatedAt = utils.UTCNow()
	err = db.Save(status).Error
	if err != nil {
		return err
	}

	return nil
}

// MarkPending upserts the given rows to pending with zeroed attempts. This is
// the mark-pending side effect driven by assignment and campaign changes;
// existing rows keep their audit columns and only flip convergence state.
func (r *SignatureSyncStatusRepositoryImpl) MarkPending(ctx context.Context, rows []*models.SignatureSyncStatus) error {
	if len(rows) == 0 {
		return nil
	}

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

	now := utils.UTCNow()
	// Insert copies without IDs so the conflict always arbitrates on user_id,
	// even for rows fetched from the database
	inserts := make([]*models.SignatureSyncStatus, 0, len(rows))
	for _, row := range rows {
		row.SyncState = models.SyncStatePending
		row.SyncAttempts = 0
		row.SyncError = nil
		row.UpdatedAt = now
		inserts = append(inserts, &models.SignatureSyncStatus{
			UserID:         row.UserID,
			OrganizationID: row.OrganizationID,
			SyncState:      models.SyncStatePending,
			UpdatedAt:      now,
		})
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"sync_state":    models.SyncStatePending,
			"sync_attempts": 0,
			"sync_error":    nil,
			"updated_at":    now,
		}),
	}).CreateInBatches(inserts, 100).Error
	if err != nil {
		return err
	}

	return nil
}

// CountByState aggregates an organization's rows per sync state
func (r *SignatureSyncStatusRepositoryImpl) CountByState(ctx context.Context, organizationID uint) (map[models.SyncState]int64, error) {
	db := r.getDB(ctx)

	type stateCount struct {
		SyncState models.SyncState
		Count     int64
	}
	var rows []stateCount
	err := db.Model(&models.SignatureSyncStatus{}).
		Select("sync_state, COUNT(*) as count").
		Where("organization_id = ?", organizationID).
		Group("sync_state").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.SyncState]int64, len(rows))
	for _, row := range rows {
		counts[row.SyncState] = row.Count
	}
	return counts, nil
}

// LastSyncedAt returns the most recent successful sync time in an organization
func (r *SignatureSyncStatusRepositoryImpl) LastSyncedAt(ctx context.Context, organizationID uint) (*time.Time, error) {
	db := r.getDB(ctx)

	var last *time.Time
	err := db.Model(&models.SignatureSyncStatus{}).
		Where("organization_id = ? AND last_synced_at IS NOT NULL", organizationID).
		Select("MAX(last_synced_at)").
		Scan(&last).Error
	if err != nil {
		return nil, err
	}
	return last, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SignatureSyncStatusRepositoryImpl) applyFilter(query *gorm.DB, filter models.SignatureSyncStatusFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.OrganizationID != nil {
		query = query.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.SyncState != nil {
		query = query.Where("sync_state = ?", *filter.SyncState)
	}
	if filter.CurrentTemplateID != nil {
		query = query.Where("current_template_id = ?", *filter.CurrentTemplateID)
	}
	if filter.SyncedAfter != nil {
		query = query.Where("last_synced_at > ?", *filter.SyncedAfter)
	}
	if filter.SyncedBefore != nil {
		query = query.Where("last_synced_at < ?", *filter.SyncedBefore)
	}
	return query
}

// ByFilter retrieves sync status rows based on filter criteria
func (r *SignatureSyncStatusRepositoryImpl) ByFilter(ctx context.Context, filter models.SignatureSyncStatusFilter, orderBy string, limit, offset int) ([]*models.SignatureSyncStatus, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureSyncStatus{}), filter)

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

	var rows []*models.SignatureSyncStatus
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of sync status rows matching the filter
func (r *SignatureSyncStatusRepositoryImpl) Count(ctx context.Context, filter models.SignatureSyncStatusFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SignatureSyncStatus{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sync status row matching the filter exists
func (r *SignatureSyncStatusRepositoryImpl) Exists(ctx context.Context, filter models.SignatureSyncStatusFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
