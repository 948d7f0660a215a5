package businessflow

import (
	"context"
	"sort"

	"github.com/clearsign-io/clearsign/app/dto"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/repository"
	"github.com/clearsign-io/clearsign/utils"
)

// AssignmentResolverFlow computes which signature each user should carry.
// Resolution is derived on demand from assignments, directory placement and
// active campaigns; nothing it returns is persisted.
type AssignmentResolverFlow interface {
	GetEffectiveSignature(ctx context.Context, userID uint) (*models.EffectiveSignature, error)
	GetAllEffectiveSignatures(ctx context.Context, organizationID uint) (map[uint]*models.EffectiveSignature, error)
	AffectedUsers(ctx context.Context, organizationID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) ([]*models.DirectoryUser, error)
	CampaignAffectedUsers(ctx context.Context, campaign *models.BannerCampaign) ([]*models.DirectoryUser, error)
	PreviewAffectedUsers(ctx context.Context, organizationID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*dto.PreviewAffectedUsersResponse, error)
	GetAvailableTargets(ctx context.Context, organizationID uint, assignmentType models.AssignmentType) (*dto.ListAvailableTargetsResponse, error)
}

// AssignmentResolverFlowImpl implements AssignmentResolverFlow
type AssignmentResolverFlowImpl struct {
	userRepo       repository.DirectoryUserRepository
	assignmentRepo repository.SignatureAssignmentRepository
	groupRepo      repository.GroupRepository
	dynamicRepo    repository.DynamicGroupRepository
	departmentRepo repository.DepartmentRepository
	campaignRepo   repository.BannerCampaignRepository
}

// NewAssignmentResolverFlow creates a new assignment resolver flow
func NewAssignmentResolverFlow(
	userRepo repository.DirectoryUserRepository,
	assignmentRepo repository.SignatureAssignmentRepository,
	groupRepo repository.GroupRepository,
	dynamicRepo repository.DynamicGroupRepository,
	departmentRepo repository.DepartmentRepository,
	campaignRepo repository.BannerCampaignRepository,
) AssignmentResolverFlow {
	return &AssignmentResolverFlowImpl{
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
		groupRepo:      groupRepo,
		dynamicRepo:    dynamicRepo,
		departmentRepo: departmentRepo,
		campaignRepo:   campaignRepo,
	}
}

// resolutionContext carries the per-user directory placement needed to match
// assignments and campaigns without further queries
type resolutionContext struct {
	user          *models.DirectoryUser
	groupIDs      map[uint]bool
	dynamicGroups map[uint]*models.DynamicGroup
	departments   map[uint]*models.Department
}

// matchesAssignment reports whether an assignment's target covers the user
func matchesAssignment(a *models.SignatureAssignment, rc *resolutionContext) bool {
	if a == nil || rc == nil || rc.user == nil {
		return false
	}
	switch a.AssignmentType {
	case models.AssignmentTypeUser:
		return a.TargetID != nil && *a.TargetID == rc.user.ID
	case models.AssignmentTypeGroup:
		return a.TargetID != nil && rc.groupIDs[*a.TargetID]
	case models.AssignmentTypeDynamicGroup:
		if a.TargetID == nil {
			return false
		}
		return rc.dynamicGroups[*a.TargetID].Matches(rc.user)
	case models.AssignmentTypeDepartment:
		if a.TargetID == nil || rc.user.Department == nil {
			return false
		}
		dept := rc.departments[*a.TargetID]
		return dept != nil && dept.Name == *rc.user.Department
	case models.AssignmentTypeOU:
		if a.TargetValue == nil || rc.user.OrgUnitPath == nil {
			return false
		}
		return models.MatchesOUPath(*rc.user.OrgUnitPath, *a.TargetValue)
	case models.AssignmentTypeOrganization:
		return true
	default:
		return false
	}
}

// selectWinningAssignment picks the assignment that wins resolution: lowest
// priority integer first, then the most recently created, then the highest ID
func selectWinningAssignment(matches []*models.SignatureAssignment) *models.SignatureAssignment {
	var winner *models.SignatureAssignment
	for _, a := range matches {
		if a == nil {
			continue
		}
		if winner == nil {
			winner = a
			continue
		}
		switch {
		case a.Priority < winner.Priority:
			winner = a
		case a.Priority == winner.Priority && a.CreatedAt.After(winner.CreatedAt):
			winner = a
		case a.Priority == winner.Priority && a.CreatedAt.Equal(winner.CreatedAt) && a.ID > winner.ID:
			winner = a
		}
	}
	return winner
}

// matchesCampaign reports whether an active campaign's target set covers the user
func matchesCampaign(c *models.BannerCampaign, rc *resolutionContext) bool {
	if c == nil || rc == nil || rc.user == nil {
		return false
	}
	switch c.TargetType {
	case models.CampaignTargetOrganization:
		return true
	case models.CampaignTargetGroup:
		for _, id := range c.TargetIDs {
			if id > 0 && rc.groupIDs[uint(id)] {
				return true
			}
		}
		return false
	case models.CampaignTargetDepartment:
		if rc.user.Department == nil {
			return false
		}
		for _, v := range c.TargetValues {
			if v == *rc.user.Department {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// selectWinningCampaign picks among overlapping active campaigns: the one
// launched for the latest window start wins, then the highest ID
func selectWinningCampaign(campaigns []*models.BannerCampaign, rc *resolutionContext) *models.BannerCampaign {
	var winner *models.BannerCampaign
	for _, c := range campaigns {
		if !matchesCampaign(c, rc) {
			continue
		}
		if winner == nil ||
			c.StartAt.After(winner.StartAt) ||
			(c.StartAt.Equal(winner.StartAt) && c.ID > winner.ID) {
			winner = c
		}
	}
	return winner
}

// resolve applies the priority chain and the campaign overlay for one user.
// A campaign override still needs a winning assignment to supply the base
// template; a banner with nothing to attach to resolves to nothing.
func resolve(assignments []*models.SignatureAssignment, campaigns []*models.BannerCampaign, rc *resolutionContext) *models.EffectiveSignature {
	var matches []*models.SignatureAssignment
	for _, a := range assignments {
		if matchesAssignment(a, rc) {
			matches = append(matches, a)
		}
	}
	winner := selectWinningAssignment(matches)
	if winner == nil {
		return nil
	}

	eff := &models.EffectiveSignature{
		UserID:         rc.user.ID,
		OrganizationID: rc.user.OrganizationID,
		AssignmentID:   &winner.ID,
		TemplateID:     &winner.TemplateID,
		Source:         winner.AssignmentType.String(),
	}
	if campaign := selectWinningCampaign(campaigns, rc); campaign != nil {
		eff.Source = models.EffectiveSourceCampaign
		eff.Banner = campaign.Banner()
	}
	return eff
}

// GetEffectiveSignature resolves the signature a single user should carry.
// Returns (nil, nil) when no assignment covers the user or the user is inactive.
func (f *AssignmentResolverFlowImpl) GetEffectiveSignature(ctx context.Context, userID uint) (*models.EffectiveSignature, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_EFFECTIVE_SIGNATURE_FAILED", "failed to load user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "user not found", ErrUserNotFound)
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, nil
	}

	rc, err := f.buildResolutionContext(ctx, user)
	if err != nil {
		return nil, err
	}

	assignments, err := f.assignmentRepo.ListActiveByOrganization(ctx, user.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("GET_EFFECTIVE_SIGNATURE_FAILED", "failed to list assignments", err)
	}
	campaigns, err := f.campaignRepo.ListActiveByOrganization(ctx, user.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("GET_EFFECTIVE_SIGNATURE_FAILED", "failed to list campaigns", err)
	}

	return resolve(assignments, campaigns, rc), nil
}

// GetAllEffectiveSignatures resolves every active user in one pass with the
// org's assignments, memberships and campaigns loaded once. Users with no
// resolution are absent from the returned map.
func (f *AssignmentResolverFlowImpl) GetAllEffectiveSignatures(ctx context.Context, organizationID uint) (map[uint]*models.EffectiveSignature, error) {
	users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("GET_ALL_EFFECTIVE_SIGNATURES_FAILED", "failed to list users", err)
	}
	assignments, err := f.assignmentRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("GET_ALL_EFFECTIVE_SIGNATURES_FAILED", "failed to list assignments", err)
	}
	campaigns, err := f.campaignRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("GET_ALL_EFFECTIVE_SIGNATURES_FAILED", "failed to list campaigns", err)
	}

	dynamicGroups, departments, err := f.loadRuleTargets(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	memberships, err := f.loadMemberships(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	out := make(map[uint]*models.EffectiveSignature, len(users))
	for _, user := range users {
		rc := &resolutionContext{
			user:          user,
			groupIDs:      memberships[user.ID],
			dynamicGroups: dynamicGroups,
			departments:   departments,
		}
		if eff := resolve(assignments, campaigns, rc); eff != nil {
			out[user.ID] = eff
		}
	}
	return out, nil
}

// AffectedUsers returns the active users an assignment with the given shape
// would cover, ignoring priority
func (f *AssignmentResolverFlowImpl) AffectedUsers(ctx context.Context, organizationID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) ([]*models.DirectoryUser, error) {
	switch assignmentType {
	case models.AssignmentTypeUser:
		if targetID == nil {
			return nil, nil
		}
		user, err := f.userRepo.ByID(ctx, *targetID)
		if err != nil {
			return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to load user", err)
		}
		if user == nil || user.OrganizationID != organizationID || (user.IsActive != nil && !*user.IsActive) {
			return nil, nil
		}
		return []*models.DirectoryUser{user}, nil

	case models.AssignmentTypeGroup:
		if targetID == nil {
			return nil, nil
		}
		memberIDs, err := f.groupRepo.ListMemberUserIDs(ctx, *targetID)
		if err != nil {
			return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to list group members", err)
		}
		return f.activeUsersByIDs(ctx, organizationID, memberIDs)

	case models.AssignmentTypeDynamicGroup:
		if targetID == nil {
			return nil, nil
		}
		group, err := f.dynamicRepo.ByID(ctx, *targetID)
		if err != nil {
			return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to load dynamic group", err)
		}
		if group == nil || group.OrganizationID != organizationID {
			return nil, nil
		}
		return f.filterActiveUsers(ctx, organizationID, group.Matches)

	case models.AssignmentTypeDepartment:
		if targetID == nil {
			return nil, nil
		}
		dept, err := f.departmentRepo.ByID(ctx, *targetID)
		if err != nil {
			return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to load department", err)
		}
		if dept == nil || dept.OrganizationID != organizationID {
			return nil, nil
		}
		return f.filterActiveUsers(ctx, organizationID, func(u *models.DirectoryUser) bool {
			return u.Department != nil && *u.Department == dept.Name
		})

	case models.AssignmentTypeOU:
		if targetValue == nil {
			return nil, nil
		}
		return f.filterActiveUsers(ctx, organizationID, func(u *models.DirectoryUser) bool {
			return u.OrgUnitPath != nil && models.MatchesOUPath(*u.OrgUnitPath, *targetValue)
		})

	case models.AssignmentTypeOrganization:
		return f.userRepo.ListActiveByOrganization(ctx, organizationID)

	default:
		return nil, NewBusinessError("INVALID_ASSIGNMENT_TYPE", "assignment type is invalid", ErrAssignmentTypeInvalid)
	}
}

// CampaignAffectedUsers returns the active users a campaign's target set covers
func (f *AssignmentResolverFlowImpl) CampaignAffectedUsers(ctx context.Context, campaign *models.BannerCampaign) ([]*models.DirectoryUser, error) {
	if campaign == nil {
		return nil, nil
	}
	switch campaign.TargetType {
	case models.CampaignTargetOrganization:
		return f.userRepo.ListActiveByOrganization(ctx, campaign.OrganizationID)

	case models.CampaignTargetGroup:
		seen := make(map[uint]bool)
		var allIDs []uint
		for _, id := range campaign.TargetIDs {
			if id <= 0 {
				continue
			}
			memberIDs, err := f.groupRepo.ListMemberUserIDs(ctx, uint(id))
			if err != nil {
				return nil, NewBusinessError("CAMPAIGN_AFFECTED_USERS_FAILED", "failed to list group members", err)
			}
			for _, uid := range memberIDs {
				if !seen[uid] {
					seen[uid] = true
					allIDs = append(allIDs, uid)
				}
			}
		}
		return f.activeUsersByIDs(ctx, campaign.OrganizationID, allIDs)

	case models.CampaignTargetDepartment:
		wanted := make(map[string]bool, len(campaign.TargetValues))
		for _, v := range campaign.TargetValues {
			wanted[v] = true
		}
		return f.filterActiveUsers(ctx, campaign.OrganizationID, func(u *models.DirectoryUser) bool {
			return u.Department != nil && wanted[*u.Department]
		})

	default:
		return nil, nil
	}
}

// PreviewAffectedUsers reports who a hypothetical assignment would cover,
// before it is created
func (f *AssignmentResolverFlowImpl) PreviewAffectedUsers(ctx context.Context, organizationID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*dto.PreviewAffectedUsersResponse, error) {
	users, err := f.AffectedUsers(ctx, organizationID, assignmentType, targetID, targetValue)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AffectedUserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, dto.AffectedUserDTO{
			ID:           u.ID,
			PrimaryEmail: u.PrimaryEmail,
			FullName:     u.FullName(),
		})
	}
	return &dto.PreviewAffectedUsersResponse{
		Message: "Affected users computed successfully",
		Items:   items,
		Total:   len(items),
	}, nil
}

// GetAvailableTargets enumerates the selectable targets of an assignment type
// together with how many active users each would cover
func (f *AssignmentResolverFlowImpl) GetAvailableTargets(ctx context.Context, organizationID uint, assignmentType models.AssignmentType) (*dto.ListAvailableTargetsResponse, error) {
	var items []dto.AvailableTargetDTO

	switch assignmentType {
	case models.AssignmentTypeUser:
		users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list users", err)
		}
		for _, u := range users {
			id := u.ID
			items = append(items, dto.AvailableTargetDTO{ID: &id, Name: u.FullName() + " <" + u.PrimaryEmail + ">", Count: 1})
		}

	case models.AssignmentTypeGroup:
		groups, err := f.groupRepo.ListActiveByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list groups", err)
		}
		for _, g := range groups {
			count, err := f.groupRepo.CountMembers(ctx, g.ID)
			if err != nil {
				return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to count group members", err)
			}
			id := g.ID
			items = append(items, dto.AvailableTargetDTO{ID: &id, Name: g.Name, Count: count})
		}

	case models.AssignmentTypeDynamicGroup:
		groups, err := f.dynamicRepo.ListActiveByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list dynamic groups", err)
		}
		users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list users", err)
		}
		for _, g := range groups {
			var count int64
			for _, u := range users {
				if g.Matches(u) {
					count++
				}
			}
			id := g.ID
			items = append(items, dto.AvailableTargetDTO{ID: &id, Name: g.Name, Count: count})
		}

	case models.AssignmentTypeDepartment:
		departments, err := f.departmentRepo.ListByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list departments", err)
		}
		for _, d := range departments {
			name := d.Name
			count, err := f.userRepo.Count(ctx, models.DirectoryUserFilter{
				OrganizationID: &organizationID,
				Department:     &name,
				IsActive:       utils.ToPtr(true),
			})
			if err != nil {
				return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to count department users", err)
			}
			id := d.ID
			items = append(items, dto.AvailableTargetDTO{ID: &id, Name: d.Name, Count: count})
		}

	case models.AssignmentTypeOU:
		paths, err := f.userRepo.ListDistinctOrgUnitPaths(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list org unit paths", err)
		}
		users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to list users", err)
		}
		sort.Strings(paths)
		for _, p := range paths {
			path := p
			var count int64
			for _, u := range users {
				if u.OrgUnitPath != nil && models.MatchesOUPath(*u.OrgUnitPath, path) {
					count++
				}
			}
			items = append(items, dto.AvailableTargetDTO{Value: &path, Name: path, Count: count})
		}

	case models.AssignmentTypeOrganization:
		count, err := f.userRepo.Count(ctx, models.DirectoryUserFilter{
			OrganizationID: &organizationID,
			IsActive:       utils.ToPtr(true),
		})
		if err != nil {
			return nil, NewBusinessError("AVAILABLE_TARGETS_FAILED", "failed to count users", err)
		}
		items = append(items, dto.AvailableTargetDTO{Name: "Everyone", Count: count})

	default:
		return nil, NewBusinessError("INVALID_ASSIGNMENT_TYPE", "assignment type is invalid", ErrAssignmentTypeInvalid)
	}

	return &dto.ListAvailableTargetsResponse{
		Message: "Available targets retrieved successfully",
		Type:    assignmentType.String(),
		Items:   items,
	}, nil
}

func (f *AssignmentResolverFlowImpl) buildResolutionContext(ctx context.Context, user *models.DirectoryUser) (*resolutionContext, error) {
	groupIDs, err := f.groupRepo.ListGroupIDsForUser(ctx, user.ID)
	if err != nil {
		return nil, NewBusinessError("RESOLUTION_CONTEXT_FAILED", "failed to list user groups", err)
	}
	groupSet := make(map[uint]bool, len(groupIDs))
	for _, id := range groupIDs {
		groupSet[id] = true
	}

	dynamicGroups, departments, err := f.loadRuleTargets(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}

	return &resolutionContext{
		user:          user,
		groupIDs:      groupSet,
		dynamicGroups: dynamicGroups,
		departments:   departments,
	}, nil
}

func (f *AssignmentResolverFlowImpl) loadRuleTargets(ctx context.Context, organizationID uint) (map[uint]*models.DynamicGroup, map[uint]*models.Department, error) {
	dynGroups, err := f.dynamicRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, nil, NewBusinessError("RESOLUTION_CONTEXT_FAILED", "failed to list dynamic groups", err)
	}
	dynamicByID := make(map[uint]*models.DynamicGroup, len(dynGroups))
	for _, g := range dynGroups {
		dynamicByID[g.ID] = g
	}

	departments, err := f.departmentRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, nil, NewBusinessError("RESOLUTION_CONTEXT_FAILED", "failed to list departments", err)
	}
	departmentByID := make(map[uint]*models.Department, len(departments))
	for _, d := range departments {
		departmentByID[d.ID] = d
	}

	return dynamicByID, departmentByID, nil
}

// loadMemberships builds user -> group-ID sets for an entire organization
func (f *AssignmentResolverFlowImpl) loadMemberships(ctx context.Context, organizationID uint) (map[uint]map[uint]bool, error) {
	groups, err := f.groupRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("RESOLUTION_CONTEXT_FAILED", "failed to list groups", err)
	}

	memberships := make(map[uint]map[uint]bool)
	for _, g := range groups {
		memberIDs, err := f.groupRepo.ListMemberUserIDs(ctx, g.ID)
		if err != nil {
			return nil, NewBusinessError("RESOLUTION_CONTEXT_FAILED", "failed to list group members", err)
		}
		for _, uid := range memberIDs {
			if memberships[uid] == nil {
				memberships[uid] = make(map[uint]bool)
			}
			memberships[uid][g.ID] = true
		}
	}
	return memberships, nil
}

func (f *AssignmentResolverFlowImpl) activeUsersByIDs(ctx context.Context, organizationID uint, ids []uint) ([]*models.DirectoryUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := f.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to load users", err)
	}
	var out []*models.DirectoryUser
	for _, u := range users {
		if u.OrganizationID != organizationID {
			continue
		}
		if u.IsActive != nil && !*u.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *AssignmentResolverFlowImpl) filterActiveUsers(ctx context.Context, organizationID uint, keep func(*models.DirectoryUser) bool) ([]*models.DirectoryUser, error) {
	users, err := f.userRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("AFFECTED_USERS_FAILED", "failed to list users", err)
	}
	var out []*models.DirectoryUser
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out, nil
}
