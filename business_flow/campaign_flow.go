package businessflow

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/clearsign-io/clearsign/app/dto"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/repository"
	"github.com/clearsign-io/clearsign/utils"
)

// CampaignFlow manages the banner campaign lifecycle. Transitions are driven
// by the scheduler against the campaign's time window; each transition marks
// the targeted users pending so the next sync cycle adds or removes banners.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error)
	CancelCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error)
	GetCampaignsToActivate(ctx context.Context) ([]*models.BannerCampaign, error)
	GetCampaignsToComplete(ctx context.Context) ([]*models.BannerCampaign, error)
	LaunchCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error)
	CompleteCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error)
	GetCampaignAffectedUsers(ctx context.Context, id uint) ([]*models.DirectoryUser, error)
}

// CampaignFlowImpl implements CampaignFlow
type CampaignFlowImpl struct {
	campaignRepo   repository.BannerCampaignRepository
	groupRepo      repository.GroupRepository
	syncStatusRepo repository.SignatureSyncStatusRepository
	resolver       AssignmentResolverFlow
	db             *gorm.DB
	validator      *validator.Validate
}

// NewCampaignFlow creates a new campaign flow
func NewCampaignFlow(
	campaignRepo repository.BannerCampaignRepository,
	groupRepo repository.GroupRepository,
	syncStatusRepo repository.SignatureSyncStatusRepository,
	resolver AssignmentResolverFlow,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:   campaignRepo,
		groupRepo:      groupRepo,
		syncStatusRepo: syncStatusRepo,
		resolver:       resolver,
		db:             db,
		validator:      validator.New(),
	}
}

// CreateCampaign validates and persists a scheduled campaign. The scheduler
// launches it once its window opens.
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, NewBusinessError("INVALID_REQUEST", "invalid create campaign request", err)
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, NewBusinessError("INVALID_CAMPAIGN_WINDOW", "campaign end time must be after start time", ErrCampaignWindowInvalid)
	}

	targetType := models.CampaignTargetType(req.TargetType)
	switch targetType {
	case models.CampaignTargetGroup:
		if len(req.TargetIDs) == 0 {
			return nil, NewBusinessError("TARGET_REQUIRED", "target_ids are required for group campaigns", ErrAssignmentTargetRequired)
		}
		for _, id := range req.TargetIDs {
			if id <= 0 {
				continue
			}
			group, err := f.groupRepo.ByID(ctx, uint(id))
			if err != nil {
				return nil, NewBusinessError("CREATE_CAMPAIGN_FAILED", "failed to load target group", err)
			}
			if group == nil || group.OrganizationID != req.OrganizationID {
				return nil, NewBusinessError("TARGET_NOT_FOUND", "campaign target group not found in organization", ErrAssignmentTargetNotFound)
			}
		}
	case models.CampaignTargetDepartment:
		if len(req.TargetValues) == 0 {
			return nil, NewBusinessError("TARGET_REQUIRED", "target_values are required for department campaigns", ErrAssignmentTargetRequired)
		}
	}

	campaign := &models.BannerCampaign{
		UUID:           uuid.New(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		BannerURL:      req.BannerURL,
		BannerLink:     req.BannerLink,
		BannerAltText:  req.BannerAltText,
		TargetType:     targetType,
		TargetIDs:      pq.Int64Array(req.TargetIDs),
		TargetValues:   pq.StringArray(req.TargetValues),
		StartAt:        req.StartAt.UTC(),
		EndAt:          req.EndAt.UTC(),
		Status:         models.CampaignStatusScheduled,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      utils.UTCNow(),
		UpdatedAt:      utils.UTCNow(),
	}
	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CREATE_CAMPAIGN_FAILED", "failed to create campaign", err)
	}

	return &dto.CreateCampaignResponse{
		Message: "Campaign created successfully",
		UUID:    campaign.UUID.String(),
		Status:  campaign.Status.String(),
	}, nil
}

// CancelCampaign stops a scheduled or active campaign. Cancelling an active
// one marks its users pending so their banners come off on the next cycle.
func (f *CampaignFlowImpl) CancelCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error) {
	campaign, err := f.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CANCEL_CAMPAIGN_FAILED", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "campaign not found", ErrCampaignNotFound)
	}
	if campaign.Status != models.CampaignStatusScheduled && campaign.Status != models.CampaignStatusActive {
		return nil, NewBusinessError("CAMPAIGN_NOT_CANCELLABLE", "only scheduled or active campaigns can be cancelled", ErrCampaignNotActive)
	}

	wasActive := campaign.Status == models.CampaignStatusActive
	var affected []*models.DirectoryUser
	if wasActive {
		affected, err = f.resolver.CampaignAffectedUsers(ctx, campaign)
		if err != nil {
			return nil, err
		}
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.campaignRepo.UpdateStatus(txCtx, campaign.ID, models.CampaignStatusCancelled, utils.UTCNow()); err != nil {
			return err
		}
		return f.markUsersPending(txCtx, affected)
	})
	if err != nil {
		return nil, NewBusinessError("CANCEL_CAMPAIGN_FAILED", "failed to cancel campaign", err)
	}

	return &dto.CampaignTransitionResponse{
		Message:       "Campaign cancelled successfully",
		CampaignID:    campaign.ID,
		Status:        models.CampaignStatusCancelled.String(),
		AffectedUsers: len(affected),
	}, nil
}

// GetCampaignsToActivate lists scheduled campaigns whose window has opened
func (f *CampaignFlowImpl) GetCampaignsToActivate(ctx context.Context) ([]*models.BannerCampaign, error) {
	campaigns, err := f.campaignRepo.ListDueForActivation(ctx, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("LIST_DUE_CAMPAIGNS_FAILED", "failed to list campaigns due for activation", err)
	}
	return campaigns, nil
}

// GetCampaignsToComplete lists active campaigns whose window has closed
func (f *CampaignFlowImpl) GetCampaignsToComplete(ctx context.Context) ([]*models.BannerCampaign, error) {
	campaigns, err := f.campaignRepo.ListDueForCompletion(ctx, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("LIST_DUE_CAMPAIGNS_FAILED", "failed to list campaigns due for completion", err)
	}
	return campaigns, nil
}

// LaunchCampaign transitions scheduled -> active and marks the targeted users
// pending so their next sync picks the banner up
func (f *CampaignFlowImpl) LaunchCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error) {
	return f.transition(ctx, id,
		models.CampaignStatusScheduled, models.CampaignStatusActive,
		"Campaign launched successfully", ErrCampaignNotScheduled)
}

// CompleteCampaign transitions active -> completed and marks the targeted
// users pending so their banners come off
func (f *CampaignFlowImpl) CompleteCampaign(ctx context.Context, id uint) (*dto.CampaignTransitionResponse, error) {
	return f.transition(ctx, id,
		models.CampaignStatusActive, models.CampaignStatusCompleted,
		"Campaign completed successfully", ErrCampaignNotActive)
}

// GetCampaignAffectedUsers returns the active users the campaign targets
func (f *CampaignFlowImpl) GetCampaignAffectedUsers(ctx context.Context, id uint) ([]*models.DirectoryUser, error) {
	campaign, err := f.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_AFFECTED_USERS_FAILED", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "campaign not found", ErrCampaignNotFound)
	}
	return f.resolver.CampaignAffectedUsers(ctx, campaign)
}

func (f *CampaignFlowImpl) transition(ctx context.Context, id uint, from, to models.CampaignStatus, message string, stateErr error) (*dto.CampaignTransitionResponse, error) {
	campaign, err := f.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_FAILED", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "campaign not found", ErrCampaignNotFound)
	}
	if campaign.Status != from {
		return nil, NewBusinessError("CAMPAIGN_WRONG_STATE", "campaign is in state "+campaign.Status.String(), stateErr)
	}

	affected, err := f.resolver.CampaignAffectedUsers(ctx, campaign)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.campaignRepo.UpdateStatus(txCtx, campaign.ID, to, utils.UTCNow()); err != nil {
			return err
		}
		return f.markUsersPending(txCtx, affected)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_TRANSITION_FAILED", "failed to transition campaign", err)
	}

	return &dto.CampaignTransitionResponse{
		Message:       message,
		CampaignID:    campaign.ID,
		Status:        to.String(),
		AffectedUsers: len(affected),
	}, nil
}

func (f *CampaignFlowImpl) markUsersPending(ctx context.Context, users []*models.DirectoryUser) error {
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
