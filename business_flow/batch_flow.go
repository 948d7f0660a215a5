package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/clearsign-io/clearsign/app/dto"
	"github.com/clearsign-io/clearsign/app/services"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/repository"
	"github.com/clearsign-io/clearsign/utils"
)

// BatchSyncFlow coordinates organization-wide sync runs: it selects the users
// that need work, fans each batch out to the sync engine, paces batches to
// stay under provider rate limits and aggregates the outcomes.
type BatchSyncFlow interface {
	SyncOrganizationSignatures(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error)
	ForceSyncAllUsers(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error)
	RetryFailedUsers(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error)
	MarkUsersPending(ctx context.Context, organizationID uint, userIDs []uint) error
	GetOrganizationSyncSummary(ctx context.Context, organizationID uint) (*dto.SyncSummaryResponse, error)
	GetUserSyncStatuses(ctx context.Context, req *dto.ListUserSyncStatusesRequest) (*dto.ListUserSyncStatusesResponse, error)
	ExportSyncReport(ctx context.Context, organizationID uint) ([]byte, error)
	DetectSignatureDrift(ctx context.Context, organizationID uint) ([]uint, error)
}

// BatchSyncFlowImpl implements BatchSyncFlow
type BatchSyncFlowImpl struct {
	userRepo       repository.DirectoryUserRepository
	orgRepo        repository.OrganizationRepository
	syncStatusRepo repository.SignatureSyncStatusRepository
	engine         SyncEngineFlow
	deployer       services.SignatureDeployer
	batchSize      int
	batchDelay     time.Duration
}

// NewBatchSyncFlow creates a new batch sync flow
func NewBatchSyncFlow(
	userRepo repository.DirectoryUserRepository,
	orgRepo repository.OrganizationRepository,
	syncStatusRepo repository.SignatureSyncStatusRepository,
	engine SyncEngineFlow,
	deployer services.SignatureDeployer,
) BatchSyncFlow {
	return &BatchSyncFlowImpl{
		userRepo:       userRepo,
		orgRepo:        orgRepo,
		syncStatusRepo: syncStatusRepo,
		engine:         engine,
		deployer:       deployer,
		batchSize:      utils.SyncBatchSize,
		batchDelay:     utils.SyncBatchDelay,
	}
}

// SyncOrganizationSignatures syncs every user of the organization whose row
// still needs work: pending rows and users with no row at all. Errored and
// exhausted rows wait for an explicit retry.
func (f *BatchSyncFlowImpl) SyncOrganizationSignatures(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error) {
	org, err := f.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("BATCH_SYNC_FAILED", "failed to load organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "organization not found", ErrOrganizationNotFound)
	}
	if !org.IsSyncable() {
		return nil, NewBusinessError("GOOGLE_NOT_CONFIGURED", "organization has no Google credentials configured", ErrGoogleNotConfigured)
	}

	userIDs, err := f.usersNeedingSync(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return f.runBatches(ctx, userIDs)
}

// ForceSyncAllUsers resets every active user to pending and runs a full sync,
// bypassing the hash short-circuit only for users whose content changed
func (f *BatchSyncFlowImpl) ForceSyncAllUsers(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error) {
	users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("FORCE_SYNC_FAILED", "failed to list users", err)
	}
	if err := f.markPending(ctx, users); err != nil {
		return nil, NewBusinessError("FORCE_SYNC_FAILED", "failed to mark users pending", err)
	}
	return f.SyncOrganizationSignatures(ctx, organizationID)
}

// RetryFailedUsers resets failed and errored rows to pending with a fresh
// retry budget, then syncs them
func (f *BatchSyncFlowImpl) RetryFailedUsers(ctx context.Context, organizationID uint) (*dto.BatchSyncResponse, error) {
	var toRetry []*models.SignatureSyncStatus
	for _, state := range []models.SyncState{models.SyncStateFailed, models.SyncStateError} {
		s := state
		rows, err := f.syncStatusRepo.ByFilter(ctx, models.SignatureSyncStatusFilter{
			OrganizationID: &organizationID,
			SyncState:      &s,
		}, "", 0, 0)
		if err != nil {
			return nil, NewBusinessError("RETRY_FAILED_USERS_FAILED", "failed to list sync rows", err)
		}
		toRetry = append(toRetry, rows...)
	}

	if len(toRetry) == 0 {
		return &dto.BatchSyncResponse{Message: "No failed users to retry"}, nil
	}
	if err := f.syncStatusRepo.MarkPending(ctx, toRetry); err != nil {
		return nil, NewBusinessError("RETRY_FAILED_USERS_FAILED", "failed to mark users pending", err)
	}

	userIDs := make([]uint, 0, len(toRetry))
	for _, row := range toRetry {
		userIDs = append(userIDs, row.UserID)
	}
	return f.runBatches(ctx, userIDs)
}

// MarkUsersPending flags specific users for the next sync cycle
func (f *BatchSyncFlowImpl) MarkUsersPending(ctx context.Context, organizationID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	users, err := f.userRepo.ListByIDs(ctx, userIDs)
	if err != nil {
		return NewBusinessError("MARK_PENDING_FAILED", "failed to load users", err)
	}
	var inOrg []*models.DirectoryUser
	for _, u := range users {
		if u.OrganizationID == organizationID {
			inOrg = append(inOrg, u)
		}
	}
	if err := f.markPending(ctx, inOrg); err != nil {
		return NewBusinessError("MARK_PENDING_FAILED", "failed to mark users pending", err)
	}
	return nil
}

// GetOrganizationSyncSummary reports the organization's convergence counters
func (f *BatchSyncFlowImpl) GetOrganizationSyncSummary(ctx context.Context, organizationID uint) (*dto.SyncSummaryResponse, error) {
	counts, err := f.syncStatusRepo.CountByState(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("SYNC_SUMMARY_FAILED", "failed to count sync states", err)
	}
	total, err := f.userRepo.Count(ctx, models.DirectoryUserFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	})
	if err != nil {
		return nil, NewBusinessError("SYNC_SUMMARY_FAILED", "failed to count users", err)
	}
	lastSynced, err := f.syncStatusRepo.LastSyncedAt(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("SYNC_SUMMARY_FAILED", "failed to read last synced time", err)
	}

	resp := &dto.SyncSummaryResponse{
		Message:    "Sync summary retrieved successfully",
		TotalUsers: total,
		Pending:    counts[models.SyncStatePending],
		Syncing:    counts[models.SyncStateSyncing],
		Synced:     counts[models.SyncStateSynced],
		Failed:     counts[models.SyncStateFailed],
		Errored:    counts[models.SyncStateError],
		Skipped:    counts[models.SyncStateSkipped],
	}
	if lastSynced != nil {
		formatted := lastSynced.UTC().Format(time.RFC3339)
		resp.LastSyncedAt = &formatted
	}
	return resp, nil
}

// GetUserSyncStatuses lists per-user sync rows with optional state filtering
func (f *BatchSyncFlowImpl) GetUserSyncStatuses(ctx context.Context, req *dto.ListUserSyncStatusesRequest) (*dto.ListUserSyncStatusesResponse, error) {
	filter := models.SignatureSyncStatusFilter{OrganizationID: &req.OrganizationID}
	if req.SyncState != nil {
		state := models.SyncState(*req.SyncState)
		if !state.Valid() {
			return nil, NewBusinessError("INVALID_SYNC_STATE", "sync state is invalid", fmt.Errorf("unknown sync state %q", *req.SyncState))
		}
		filter.SyncState = &state
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := f.syncStatusRepo.ByFilter(ctx, filter, "updated_at DESC", limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("LIST_SYNC_STATUSES_FAILED", "failed to list sync rows", err)
	}
	total, err := f.syncStatusRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_SYNC_STATUSES_FAILED", "failed to count sync rows", err)
	}

	emails, err := f.emailsByUserID(ctx, rows)
	if err != nil {
		return nil, err
	}

	items := make([]dto.UserSyncStatusDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toUserSyncStatusDTO(row, emails[row.UserID]))
	}
	return &dto.ListUserSyncStatusesResponse{
		Message: "Sync statuses retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// ExportSyncReport builds an XLSX workbook of every sync row for operators
func (f *BatchSyncFlowImpl) ExportSyncReport(ctx context.Context, organizationID uint) ([]byte, error) {
	rows, err := f.syncStatusRepo.ByFilter(ctx, models.SignatureSyncStatusFilter{
		OrganizationID: &organizationID,
	}, "user_id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to list sync rows", err)
	}
	emails, err := f.emailsByUserID(ctx, rows)
	if err != nil {
		return nil, err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	const sheet = "Sync Report"
	index, err := wb.NewSheet(sheet)
	if err != nil {
		return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to create sheet", err)
	}
	wb.SetActiveSheet(index)
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to drop default sheet", err)
	}

	headers := []string{"User ID", "Email", "State", "Attempts", "Template ID", "Source", "Last Synced At", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to write header", err)
		}
	}

	for rowIdx, row := range rows {
		values := []any{
			row.UserID,
			emails[row.UserID],
			row.SyncState.String(),
			row.SyncAttempts,
			derefUint(row.CurrentTemplateID),
			derefString(row.AssignmentSource),
			formatTime(row.LastSyncedAt),
			derefString(row.SyncError),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := wb.SetCellValue(sheet, cell, v); err != nil {
				return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to write row", err)
			}
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXPORT_REPORT_FAILED", "failed to serialize workbook", err)
	}
	return buf.Bytes(), nil
}

// DetectSignatureDrift compares what the provider actually has deployed with
// what each synced row claims, and marks drifted users pending. Returns the
// drifted user IDs.
func (f *BatchSyncFlowImpl) DetectSignatureDrift(ctx context.Context, organizationID uint) ([]uint, error) {
	org, err := f.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("DRIFT_DETECTION_FAILED", "failed to load organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "organization not found", ErrOrganizationNotFound)
	}
	if !org.IsSyncable() {
		return nil, NewBusinessError("GOOGLE_NOT_CONFIGURED", "organization has no Google credentials configured", ErrGoogleNotConfigured)
	}

	synced := models.SyncStateSynced
	rows, err := f.syncStatusRepo.ByFilter(ctx, models.SignatureSyncStatusFilter{
		OrganizationID: &organizationID,
		SyncState:      &synced,
	}, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("DRIFT_DETECTION_FAILED", "failed to list synced rows", err)
	}
	emails, err := f.emailsByUserID(ctx, rows)
	if err != nil {
		return nil, err
	}

	var drifted []*models.SignatureSyncStatus
	var driftedIDs []uint
	for _, row := range rows {
		if row.SignatureHash == nil {
			continue
		}
		email, ok := emails[row.UserID]
		if !ok {
			continue
		}
		deployed, err := f.deployer.FetchSignature(ctx, org, email)
		if err != nil {
			// Unreachable mailbox; the next sync cycle will surface it
			continue
		}
		if utils.HashContent(deployed) != *row.SignatureHash {
			drifted = append(drifted, row)
			driftedIDs = append(driftedIDs, row.UserID)
		}
	}

	if len(drifted) > 0 {
		if err := f.syncStatusRepo.MarkPending(ctx, drifted); err != nil {
			return nil, NewBusinessError("DRIFT_DETECTION_FAILED", "failed to mark drifted users pending", err)
		}
	}
	return driftedIDs, nil
}

// usersNeedingSync selects active users whose sync row is pending or missing
func (f *BatchSyncFlowImpl) usersNeedingSync(ctx context.Context, organizationID uint) ([]uint, error) {
	users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("BATCH_SYNC_FAILED", "failed to list users", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	rows, err := f.syncStatusRepo.ByUserIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("BATCH_SYNC_FAILED", "failed to load sync rows", err)
	}
	rowByUser := make(map[uint]*models.SignatureSyncStatus, len(rows))
	for _, row := range rows {
		rowByUser[row.UserID] = row
	}

	var out []uint
	for _, u := range users {
		if rowByUser[u.ID].NeedsSync(utils.MaxSyncRetries) {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

// runBatches fans the user list out to the engine in fixed-size concurrent
// batches with a pause between them. A panic in one user's sync is isolated
// into a failure result for that user alone.
func (f *BatchSyncFlowImpl) runBatches(ctx context.Context, userIDs []uint) (*dto.BatchSyncResponse, error) {
	resp := &dto.BatchSyncResponse{
		Message:    "Batch sync completed",
		TotalUsers: len(userIDs),
		Results:    make([]dto.SyncResultDTO, 0, len(userIDs)),
	}
	if len(userIDs) == 0 {
		resp.Message = "No users need syncing"
		return resp, nil
	}

	for start := 0; start < len(userIDs); start += f.batchSize {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		end := start + f.batchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch := userIDs[start:end]

		results := make([]*dto.SyncResultDTO, len(batch))
		var wg sync.WaitGroup
		for i, userID := range batch {
			wg.Add(1)
			go func(slot int, id uint) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						msg := fmt.Sprintf("sync panicked: %v", r)
						results[slot] = &dto.SyncResultDTO{
							Success: false,
							UserID:  id,
							Status:  models.SyncStateError.String(),
							Error:   &msg,
						}
					}
				}()
				results[slot] = f.engine.SyncUserSignature(ctx, id)
			}(i, userID)
		}
		wg.Wait()

		for _, r := range results {
			if r == nil {
				continue
			}
			resp.Results = append(resp.Results, *r)
			switch {
			case r.Success && r.Status == models.SyncStateSkipped.String():
				resp.SkippedCount++
			case r.Success:
				resp.SuccessCount++
			case r.Status == models.SyncStateSkipped.String():
				resp.SkippedCount++
			default:
				resp.FailureCount++
			}
		}

		if end < len(userIDs) {
			select {
			case <-ctx.Done():
				return resp, ctx.Err()
			case <-time.After(f.batchDelay):
			}
		}
	}
	return resp, nil
}

func (f *BatchSyncFlowImpl) markPending(ctx context.Context, users []*models.DirectoryUser) error {
	if len(users) == 0 {
		return nil
	}
	rows := make([]*models.SignatureSyncStatus, 0, len(users))
	for _, u := range users {
		rows = append(rows, &models.SignatureSyncStatus{
			UserID:         u.ID,
			OrganizationID: u.OrganizationID,
			SyncState:      models.SyncStatePending,
		})
	}
	return f.syncStatusRepo.MarkPending(ctx, rows)
}

func (f *BatchSyncFlowImpl) emailsByUserID(ctx context.Context, rows []*models.SignatureSyncStatus) (map[uint]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	users, err := f.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("LIST_SYNC_STATUSES_FAILED", "failed to load users", err)
	}
	emails := make(map[uint]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.PrimaryEmail
	}
	return emails, nil
}

func toUserSyncStatusDTO(row *models.SignatureSyncStatus, email string) dto.UserSyncStatusDTO {
	return dto.UserSyncStatusDTO{
		UserID:            row.UserID,
		UserEmail:         email,
		OrganizationID:    row.OrganizationID,
		CurrentTemplateID: row.CurrentTemplateID,
		AssignmentSource:  row.AssignmentSource,
		SyncState:         row.SyncState.String(),
		SyncError:         row.SyncError,
		SyncAttempts:      row.SyncAttempts,
		SignatureHash:     row.SignatureHash,
		LastSyncedAt:      formatTimePtr(row.LastSyncedAt),
		LastSyncAttemptAt: formatTimePtr(row.LastSyncAttemptAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUint(v *uint) any {
	if v == nil {
		return ""
	}
	return *v
}
