package businessflow

import (
	"context"

	"github.com/clearsign-io/clearsign/app/dto"
	"github.com/clearsign-io/clearsign/app/services"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/repository"
	"github.com/clearsign-io/clearsign/utils"
)

// SyncEngineFlow converges a single user's deployed signature with their
// resolved one. Every outcome is reported as a SyncResultDTO; the engine
// records failures on the sync row instead of propagating them, so one bad
// user never aborts a batch.
type SyncEngineFlow interface {
	SyncUserSignature(ctx context.Context, userID uint) *dto.SyncResultDTO
}

// SyncEngineFlowImpl implements SyncEngineFlow
type SyncEngineFlowImpl struct {
	userRepo       repository.DirectoryUserRepository
	orgRepo        repository.OrganizationRepository
	templateRepo   repository.SignatureTemplateRepository
	syncStatusRepo repository.SignatureSyncStatusRepository
	resolver       AssignmentResolverFlow
	renderer       services.TemplateRenderer
	deployer       services.SignatureDeployer
	maxRetries     int
}

// NewSyncEngineFlow creates a new sync engine flow
func NewSyncEngineFlow(
	userRepo repository.DirectoryUserRepository,
	orgRepo repository.OrganizationRepository,
	templateRepo repository.SignatureTemplateRepository,
	syncStatusRepo repository.SignatureSyncStatusRepository,
	resolver AssignmentResolverFlow,
	renderer services.TemplateRenderer,
	deployer services.SignatureDeployer,
) SyncEngineFlow {
	return &SyncEngineFlowImpl{
		userRepo:       userRepo,
		orgRepo:        orgRepo,
		templateRepo:   templateRepo,
		syncStatusRepo: syncStatusRepo,
		resolver:       resolver,
		renderer:       renderer,
		deployer:       deployer,
		maxRetries:     utils.MaxSyncRetries,
	}
}

// SyncUserSignature runs the full pipeline for one user: resolve, render,
// hash, deploy, record. The deploy is skipped when the rendered hash matches
// what the row says is already deployed.
func (f *SyncEngineFlowImpl) SyncUserSignature(ctx context.Context, userID uint) *dto.SyncResultDTO {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return skippedResult(userID, "", "failed to load user: "+err.Error())
	}
	if user == nil {
		return skippedResult(userID, "", "user not found")
	}
	if user.IsActive != nil && !*user.IsActive {
		return skippedResult(userID, user.PrimaryEmail, "user is inactive")
	}

	org, err := f.orgRepo.ByID(ctx, user.OrganizationID)
	if err != nil {
		return skippedResult(userID, user.PrimaryEmail, "failed to load organization: "+err.Error())
	}
	if org == nil || !org.IsSyncable() {
		return skippedResult(userID, user.PrimaryEmail, "organization is not syncable")
	}

	status, err := f.syncStatusRepo.ByUserID(ctx, userID)
	if err != nil {
		return skippedResult(userID, user.PrimaryEmail, "failed to load sync status: "+err.Error())
	}
	if status == nil {
		status = &models.SignatureSyncStatus{
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			SyncState:      models.SyncStatePending,
		}
	}

	now := utils.UTCNow()
	status.SyncState = models.SyncStateSyncing
	status.LastSyncAttemptAt = &now
	if err := f.syncStatusRepo.Upsert(ctx, status); err != nil {
		return skippedResult(userID, user.PrimaryEmail, "failed to record sync attempt: "+err.Error())
	}

	eff, err := f.resolver.GetEffectiveSignature(ctx, userID)
	if err != nil {
		return f.recordFailure(ctx, user, status, "resolution failed: "+err.Error())
	}
	if eff == nil || eff.TemplateID == nil {
		return f.recordSkipped(ctx, user, status)
	}

	template, err := f.templateRepo.ByID(ctx, *eff.TemplateID)
	if err != nil {
		return f.recordFailure(ctx, user, status, "failed to load template: "+err.Error())
	}
	if template == nil || (template.IsActive != nil && !*template.IsActive) {
		return f.recordError(ctx, user, status, "Template not found")
	}

	rendered, err := f.renderer.Render(ctx, user, template, eff.Banner)
	if err != nil {
		return f.recordError(ctx, user, status, "render failed: "+err.Error())
	}

	hash := utils.HashContent(rendered)
	if status.SignatureHash != nil && *status.SignatureHash == hash {
		// Already deployed; confirm the row without touching the provider
		return f.recordSynced(ctx, user, status, eff, rendered, hash)
	}

	if err := f.deployer.SetSignature(ctx, org, user.PrimaryEmail, rendered); err != nil {
		return f.recordFailure(ctx, user, status, "deploy failed: "+err.Error())
	}

	return f.recordSynced(ctx, user, status, eff, rendered, hash)
}

// recordSynced transitions the row to synced, mirroring the resolution
func (f *SyncEngineFlowImpl) recordSynced(ctx context.Context, user *models.DirectoryUser, status *models.SignatureSyncStatus, eff *models.EffectiveSignature, rendered, hash string) *dto.SyncResultDTO {
	now := utils.UTCNow()
	source := eff.Source

	status.SyncState = models.SyncStateSynced
	status.CurrentTemplateID = eff.TemplateID
	status.AssignmentID = eff.AssignmentID
	status.AssignmentSource = &source
	status.RenderedHTML = &rendered
	status.SignatureHash = &hash
	status.SyncError = nil
	status.SyncAttempts = 0
	status.LastSyncedAt = &now

	if err := f.syncStatusRepo.Upsert(ctx, status); err != nil {
		return f.recordFailure(ctx, user, status, "failed to record success: "+err.Error())
	}
	return &dto.SyncResultDTO{
		Success:   true,
		UserID:    user.ID,
		UserEmail: user.PrimaryEmail,
		Status:    models.SyncStateSynced.String(),
	}
}

// recordSkipped transitions the row to skipped when no assignment covers the
// user. The row forgets what was rendered; the signature already deployed at
// the provider is left untouched.
func (f *SyncEngineFlowImpl) recordSkipped(ctx context.Context, user *models.DirectoryUser, status *models.SignatureSyncStatus) *dto.SyncResultDTO {
	status.SyncState = models.SyncStateSkipped
	status.CurrentTemplateID = nil
	status.AssignmentID = nil
	status.AssignmentSource = nil
	status.RenderedHTML = nil
	status.SignatureHash = nil
	status.SyncError = nil
	status.SyncAttempts = 0

	if err := f.syncStatusRepo.Upsert(ctx, status); err != nil {
		return f.recordFailure(ctx, user, status, "failed to record skip: "+err.Error())
	}
	return &dto.SyncResultDTO{
		Success:   true,
		UserID:    user.ID,
		UserEmail: user.PrimaryEmail,
		Status:    models.SyncStateSkipped.String(),
	}
}

// recordFailure handles transient failures such as a provider outage: the
// attempt counter grows and the row returns to pending so the next cycle picks
// it up again, until the retry budget runs out and it lands in failed
func (f *SyncEngineFlowImpl) recordFailure(ctx context.Context, user *models.DirectoryUser, status *models.SignatureSyncStatus, message string) *dto.SyncResultDTO {
	status.SyncAttempts++
	if status.SyncAttempts >= f.maxRetries {
		status.SyncState = models.SyncStateFailed
	} else {
		status.SyncState = models.SyncStatePending
	}
	return f.recordFailureState(ctx, user, status, message)
}

// recordError handles permanent failures such as a missing template or a
// render error. The row lands in error and stays there until somebody fixes
// the data and marks the user pending again; retrying would fail identically.
func (f *SyncEngineFlowImpl) recordError(ctx context.Context, user *models.DirectoryUser, status *models.SignatureSyncStatus, message string) *dto.SyncResultDTO {
	status.SyncAttempts++
	status.SyncState = models.SyncStateError
	return f.recordFailureState(ctx, user, status, message)
}

func (f *SyncEngineFlowImpl) recordFailureState(ctx context.Context, user *models.DirectoryUser, status *models.SignatureSyncStatus, message string) *dto.SyncResultDTO {
	status.SyncError = &message

	// Best effort; the result carries the error either way
	_ = f.syncStatusRepo.Upsert(ctx, status)

	return &dto.SyncResultDTO{
		Success:   false,
		UserID:    user.ID,
		UserEmail: user.PrimaryEmail,
		Status:    status.SyncState.String(),
		Error:     &message,
	}
}

func skippedResult(userID uint, email, reason string) *dto.SyncResultDTO {
	return &dto.SyncResultDTO{
		Success:   false,
		UserID:    userID,
		UserEmail: email,
		Status:    models.SyncStateSkipped.String(),
		Error:     &reason,
	}
}
