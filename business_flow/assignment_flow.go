package businessflow

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearsign-io/clearsign/app/dto"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/repository"
	"github.com/clearsign-io/clearsign/utils"
)

// AssignmentFlow manages the lifecycle of signature assignments. Every
// mutation marks the users it covers pending so the next sync cycle converges
// them, and runs inside one transaction with the assignment write itself.
type AssignmentFlow interface {
	CreateAssignment(ctx context.Context, req *dto.CreateAssignmentRequest) (*dto.CreateAssignmentResponse, error)
	UpdateAssignment(ctx context.Context, req *dto.UpdateAssignmentRequest) (*dto.UpdateAssignmentResponse, error)
	DeleteAssignment(ctx context.Context, id uint) (*dto.DeleteAssignmentResponse, error)
	GetAssignment(ctx context.Context, id uint) (*dto.AssignmentDTO, error)
	ListAssignments(ctx context.Context, req *dto.ListAssignmentsRequest) (*dto.ListAssignmentsResponse, error)
}

// AssignmentFlowImpl implements AssignmentFlow
type AssignmentFlowImpl struct {
	assignmentRepo repository.SignatureAssignmentRepository
	templateRepo   repository.SignatureTemplateRepository
	userRepo       repository.DirectoryUserRepository
	groupRepo      repository.GroupRepository
	dynamicRepo    repository.DynamicGroupRepository
	departmentRepo repository.DepartmentRepository
	orgRepo        repository.OrganizationRepository
	syncStatusRepo repository.SignatureSyncStatusRepository
	resolver       AssignmentResolverFlow
	db             *gorm.DB
	validator      *validator.Validate
}

// NewAssignmentFlow creates a new assignment flow
func NewAssignmentFlow(
	assignmentRepo repository.SignatureAssignmentRepository,
	templateRepo repository.SignatureTemplateRepository,
	userRepo repository.DirectoryUserRepository,
	groupRepo repository.GroupRepository,
	dynamicRepo repository.DynamicGroupRepository,
	departmentRepo repository.DepartmentRepository,
	orgRepo repository.OrganizationRepository,
	syncStatusRepo repository.SignatureSyncStatusRepository,
	resolver AssignmentResolverFlow,
	db *gorm.DB,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		assignmentRepo: assignmentRepo,
		templateRepo:   templateRepo,
		userRepo:       userRepo,
		groupRepo:      groupRepo,
		dynamicRepo:    dynamicRepo,
		departmentRepo: departmentRepo,
		orgRepo:        orgRepo,
		syncStatusRepo: syncStatusRepo,
		resolver:       resolver,
		db:             db,
		validator:      validator.New(),
	}
}

// CreateAssignment validates and persists a new assignment, then marks every
// user it covers pending for the next sync cycle
func (f *AssignmentFlowImpl) CreateAssignment(ctx context.Context, req *dto.CreateAssignmentRequest) (*dto.CreateAssignmentResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, NewBusinessError("INVALID_REQUEST", "invalid create assignment request", err)
	}

	assignmentType := models.AssignmentType(req.AssignmentType)
	if !assignmentType.Valid() {
		return nil, NewBusinessError("INVALID_ASSIGNMENT_TYPE", "assignment type is invalid", ErrAssignmentTypeInvalid)
	}
	if err := f.validateTargetShape(assignmentType, req.TargetID, req.TargetValue); err != nil {
		return nil, err
	}

	org, err := f.orgRepo.ByID(ctx, req.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("CREATE_ASSIGNMENT_FAILED", "failed to load organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "organization not found", ErrOrganizationNotFound)
	}

	template, err := f.templateRepo.ByID(ctx, req.TemplateID)
	if err != nil {
		return nil, NewBusinessError("CREATE_ASSIGNMENT_FAILED", "failed to load template", err)
	}
	if template == nil || template.OrganizationID != req.OrganizationID {
		return nil, NewBusinessError("TEMPLATE_NOT_FOUND", "template not found", ErrTemplateNotFound)
	}

	if err := f.validateTargetExists(ctx, req.OrganizationID, assignmentType, req.TargetID); err != nil {
		return nil, err
	}

	existing, err := f.assignmentRepo.FindDuplicate(ctx, req.OrganizationID, req.TemplateID, assignmentType, req.TargetID, req.TargetValue)
	if err != nil {
		return nil, NewBusinessError("CREATE_ASSIGNMENT_FAILED", "failed to check for duplicates", err)
	}
	if existing != nil {
		return nil, NewBusinessError("ASSIGNMENT_DUPLICATE", "an identical assignment already exists", ErrAssignmentDuplicate)
	}

	priority := assignmentType.DefaultPriority()
	if req.Priority != nil {
		priority = *req.Priority
	}

	assignment := &models.SignatureAssignment{
		UUID:           uuid.New(),
		OrganizationID: req.OrganizationID,
		TemplateID:     req.TemplateID,
		AssignmentType: assignmentType,
		TargetID:       req.TargetID,
		TargetValue:    req.TargetValue,
		Priority:       priority,
		IsActive:       utils.ToPtr(true),
		CreatedBy:      req.CreatedBy,
		CreatedAt:      utils.UTCNow(),
		UpdatedAt:      utils.UTCNow(),
	}

	affected, err := f.resolver.AffectedUsers(ctx, req.OrganizationID, assignmentType, req.TargetID, req.TargetValue)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.assignmentRepo.Save(txCtx, assignment); err != nil {
			return err
		}
		return f.markUsersPending(txCtx, affected)
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_ASSIGNMENT_FAILED", "failed to create assignment", err)
	}

	assignment.Template = template
	return &dto.CreateAssignmentResponse{
		Message:    "Assignment created successfully",
		Assignment: dto.ToAssignmentDTO(*assignment),
	}, nil
}

// UpdateAssignment changes an assignment's priority or active flag. The
// target shape is immutable; replacing a target means delete plus create.
func (f *AssignmentFlowImpl) UpdateAssignment(ctx context.Context, req *dto.UpdateAssignmentRequest) (*dto.UpdateAssignmentResponse, error) {
	if err := f.validator.Struct(req); err != nil {
		return nil, NewBusinessError("INVALID_REQUEST", "invalid update assignment request", err)
	}
	if req.Priority == nil && req.IsActive == nil {
		return nil, NewBusinessError("UPDATE_REQUIRED", "at least one field must be provided for update", ErrAssignmentUpdateRequired)
	}

	assignment, err := f.assignmentRepo.ByID(ctx, req.ID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ASSIGNMENT_FAILED", "failed to load assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "assignment not found", ErrAssignmentNotFound)
	}

	if req.Priority != nil {
		assignment.Priority = *req.Priority
	}
	if req.IsActive != nil {
		assignment.IsActive = req.IsActive
	}
	assignment.UpdatedAt = utils.UTCNow()

	affected, err := f.resolver.AffectedUsers(ctx, assignment.OrganizationID, assignment.AssignmentType, assignment.TargetID, assignment.TargetValue)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.assignmentRepo.Update(txCtx, assignment); err != nil {
			return err
		}
		return f.markUsersPending(txCtx, affected)
	})
	if err != nil {
		return nil, NewBusinessError("UPDATE_ASSIGNMENT_FAILED", "failed to update assignment", err)
	}

	return &dto.UpdateAssignmentResponse{
		Message:    "Assignment updated successfully",
		Assignment: dto.ToAssignmentDTO(*assignment),
	}, nil
}

// DeleteAssignment removes an assignment and marks its former user set
// pending so they fall back to the next assignment in the chain
func (f *AssignmentFlowImpl) DeleteAssignment(ctx context.Context, id uint) (*dto.DeleteAssignmentResponse, error) {
	assignment, err := f.assignmentRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DELETE_ASSIGNMENT_FAILED", "failed to load assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "assignment not found", ErrAssignmentNotFound)
	}

	affected, err := f.resolver.AffectedUsers(ctx, assignment.OrganizationID, assignment.AssignmentType, assignment.TargetID, assignment.TargetValue)
	if err != nil {
		return nil, err
	}

	var deleted bool
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		deleted, err = f.assignmentRepo.Delete(txCtx, id)
		if err != nil {
			return err
		}
		return f.markUsersPending(txCtx, affected)
	})
	if err != nil {
		return nil, NewBusinessError("DELETE_ASSIGNMENT_FAILED", "failed to delete assignment", err)
	}

	return &dto.DeleteAssignmentResponse{
		Message: "Assignment deleted successfully",
		Deleted: deleted,
	}, nil
}

// GetAssignment retrieves a single assignment by ID
func (f *AssignmentFlowImpl) GetAssignment(ctx context.Context, id uint) (*dto.AssignmentDTO, error) {
	assignment, err := f.assignmentRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_ASSIGNMENT_FAILED", "failed to load assignment", err)
	}
	if assignment == nil {
		return nil, NewBusinessError("ASSIGNMENT_NOT_FOUND", "assignment not found", ErrAssignmentNotFound)
	}
	out := dto.ToAssignmentDTO(*assignment)
	return &out, nil
}

// ListAssignments retrieves assignments matching the request filters
func (f *AssignmentFlowImpl) ListAssignments(ctx context.Context, req *dto.ListAssignmentsRequest) (*dto.ListAssignmentsResponse, error) {
	filter := models.SignatureAssignmentFilter{
		OrganizationID: &req.OrganizationID,
		TemplateID:     req.TemplateID,
		IsActive:       req.IsActive,
	}
	if req.AssignmentType != nil {
		t := models.AssignmentType(*req.AssignmentType)
		if !t.Valid() {
			return nil, NewBusinessError("INVALID_ASSIGNMENT_TYPE", "assignment type is invalid", ErrAssignmentTypeInvalid)
		}
		filter.AssignmentType = &t
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := f.assignmentRepo.ByFilter(ctx, filter, "priority ASC, created_at DESC", limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("LIST_ASSIGNMENTS_FAILED", "failed to list assignments", err)
	}
	total, err := f.assignmentRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_ASSIGNMENTS_FAILED", "failed to count assignments", err)
	}

	items := make([]dto.AssignmentDTO, 0, len(rows))
	for _, a := range rows {
		items = append(items, dto.ToAssignmentDTO(*a))
	}
	return &dto.ListAssignmentsResponse{
		Message: "Assignments retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// validateTargetShape rejects target fields that do not fit the type
func (f *AssignmentFlowImpl) validateTargetShape(t models.AssignmentType, targetID *uint, targetValue *string) error {
	if t.RequiresTargetID() {
		if targetID == nil {
			return NewBusinessError("TARGET_REQUIRED", "target_id is required for type "+t.String(), ErrAssignmentTargetRequired)
		}
		if targetValue != nil {
			return NewBusinessError("TARGET_CONFLICT", "target_value must not be set for type "+t.String(), ErrAssignmentTargetConflict)
		}
		return nil
	}
	if t.RequiresTargetValue() {
		if targetValue == nil {
			return NewBusinessError("TARGET_REQUIRED", "target_value is required for type "+t.String(), ErrAssignmentTargetRequired)
		}
		if targetID != nil {
			return NewBusinessError("TARGET_CONFLICT", "target_id must not be set for type "+t.String(), ErrAssignmentTargetConflict)
		}
		return nil
	}
	// organization catch-all carries neither
	if targetID != nil || targetValue != nil {
		return NewBusinessError("TARGET_CONFLICT", "targets must not be set for type "+t.String(), ErrAssignmentTargetConflict)
	}
	return nil
}

// validateTargetExists checks that an ID-addressed target row exists in-org
func (f *AssignmentFlowImpl) validateTargetExists(ctx context.Context, organizationID uint, t models.AssignmentType, targetID *uint) error {
	if !t.RequiresTargetID() {
		return nil
	}

	var (
		found bool
		err   error
	)
	switch t {
	case models.AssignmentTypeUser:
		var user *models.DirectoryUser
		user, err = f.userRepo.ByID(ctx, *targetID)
		found = user != nil && user.OrganizationID == organizationID
	case models.AssignmentTypeGroup:
		var group *models.Group
		group, err = f.groupRepo.ByID(ctx, *targetID)
		found = group != nil && group.OrganizationID == organizationID
	case models.AssignmentTypeDynamicGroup:
		var group *models.DynamicGroup
		group, err = f.dynamicRepo.ByID(ctx, *targetID)
		found = group != nil && group.OrganizationID == organizationID
	case models.AssignmentTypeDepartment:
		var dept *models.Department
		dept, err = f.departmentRepo.ByID(ctx, *targetID)
		found = dept != nil && dept.OrganizationID == organizationID
	}
	if err != nil {
		return NewBusinessError("CREATE_ASSIGNMENT_FAILED", "failed to load assignment target", err)
	}
	if !found {
		return NewBusinessError("TARGET_NOT_FOUND", "assignment target not found in organization", ErrAssignmentTargetNotFound)
	}
	return nil
}

// markUsersPending upserts pending sync rows for the given users
func (f *AssignmentFlowImpl) markUsersPending(ctx context.Context, users []*models.DirectoryUser) error {
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
