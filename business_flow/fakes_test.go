package businessflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearsign-io/clearsign/app/services"
	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
)

// In-memory repository fakes. Each holds rows keyed by ID and implements the
// query methods the flows exercise; writes assign IDs sequentially.

type fakeOrgRepo struct {
	rows   map[uint]*models.Organization
	nextID uint
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{rows: make(map[uint]*models.Organization), nextID: 1}
}

func (r *fakeOrgRepo) add(org *models.Organization) *models.Organization {
	if org.ID == 0 {
		org.ID = r.nextID
		r.nextID++
	}
	r.rows[org.ID] = org
	return org
}

func (r *fakeOrgRepo) ByID(_ context.Context, id uint) (*models.Organization, error) {
	return r.rows[id], nil
}

func (r *fakeOrgRepo) ByFilter(_ context.Context, _ models.OrganizationFilter, _ string, _, _ int) ([]*models.Organization, error) {
	var out []*models.Organization
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeOrgRepo) Save(_ context.Context, org *models.Organization) error {
	r.add(org)
	return nil
}

func (r *fakeOrgRepo) SaveBatch(ctx context.Context, orgs []*models.Organization) error {
	for _, org := range orgs {
		r.add(org)
	}
	return nil
}

func (r *fakeOrgRepo) Count(_ context.Context, _ models.OrganizationFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeOrgRepo) Exists(_ context.Context, _ models.OrganizationFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeOrgRepo) ByUUID(_ context.Context, id string) (*models.Organization, error) {
	for _, row := range r.rows {
		if row.UUID.String() == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeOrgRepo) ListSyncable(_ context.Context) ([]*models.Organization, error) {
	var out []*models.Organization
	for _, row := range r.rows {
		if row.IsSyncable() {
			out = append(out, row)
		}
	}
	sortByID(out, func(o *models.Organization) uint { return o.ID })
	return out, nil
}

type fakeUserRepo struct {
	rows   map[uint]*models.DirectoryUser
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[uint]*models.DirectoryUser), nextID: 1}
}

func (r *fakeUserRepo) add(user *models.DirectoryUser) *models.DirectoryUser {
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	}
	r.rows[user.ID] = user
	return user
}

func (r *fakeUserRepo) ByID(_ context.Context, id uint) (*models.DirectoryUser, error) {
	return r.rows[id], nil
}

func (r *fakeUserRepo) matches(u *models.DirectoryUser, f models.DirectoryUserFilter) bool {
	if f.OrganizationID != nil && u.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.IsActive != nil && utils.IsTrue(u.IsActive) != *f.IsActive {
		return false
	}
	if f.Department != nil && (u.Department == nil || *u.Department != *f.Department) {
		return false
	}
	if f.PrimaryEmail != nil && u.PrimaryEmail != *f.PrimaryEmail {
		return false
	}
	return true
}

func (r *fakeUserRepo) ByFilter(_ context.Context, f models.DirectoryUserFilter, _ string, _, _ int) ([]*models.DirectoryUser, error) {
	var out []*models.DirectoryUser
	for _, row := range r.rows {
		if r.matches(row, f) {
			out = append(out, row)
		}
	}
	sortByID(out, func(u *models.DirectoryUser) uint { return u.ID })
	return out, nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *models.DirectoryUser) error {
	r.add(user)
	return nil
}

func (r *fakeUserRepo) SaveBatch(_ context.Context, users []*models.DirectoryUser) error {
	for _, user := range users {
		r.add(user)
	}
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context, f models.DirectoryUserFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, f models.DirectoryUserFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func (r *fakeUserRepo) ByUUID(_ context.Context, id string) (*models.DirectoryUser, error) {
	for _, row := range r.rows {
		if row.UUID.String() == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByPrimaryEmail(_ context.Context, email string) (*models.DirectoryUser, error) {
	for _, row := range r.rows {
		if row.PrimaryEmail == email {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.DirectoryUser, error) {
	return r.ByFilter(ctx, models.DirectoryUserFilter{
		OrganizationID: &organizationID,
		IsActive:       utils.ToPtr(true),
	}, "", 0, 0)
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []uint) ([]*models.DirectoryUser, error) {
	var out []*models.DirectoryUser
	for _, id := range ids {
		if row, ok := r.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListDistinctDepartments(_ context.Context, organizationID uint) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && row.Department != nil && !seen[*row.Department] {
			seen[*row.Department] = true
			out = append(out, *row.Department)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeUserRepo) ListDistinctOrgUnitPaths(_ context.Context, organizationID uint) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && row.OrgUnitPath != nil && !seen[*row.OrgUnitPath] {
			seen[*row.OrgUnitPath] = true
			out = append(out, *row.OrgUnitPath)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeGroupRepo struct {
	rows    map[uint]*models.Group
	members map[uint][]uint // group ID -> user IDs
	nextID  uint
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{rows: make(map[uint]*models.Group), members: make(map[uint][]uint), nextID: 1}
}

func (r *fakeGroupRepo) add(group *models.Group, memberIDs ...uint) *models.Group {
	if group.ID == 0 {
		group.ID = r.nextID
		r.nextID++
	}
	r.rows[group.ID] = group
	r.members[group.ID] = append(r.members[group.ID], memberIDs...)
	return group
}

func (r *fakeGroupRepo) ByID(_ context.Context, id uint) (*models.Group, error) {
	return r.rows[id], nil
}

func (r *fakeGroupRepo) ByFilter(_ context.Context, _ models.GroupFilter, _ string, _, _ int) ([]*models.Group, error) {
	var out []*models.Group
	for _, row := range r.rows {
		out = append(out, row)
	}
	sortByID(out, func(g *models.Group) uint { return g.ID })
	return out, nil
}

func (r *fakeGroupRepo) Save(_ context.Context, group *models.Group) error {
	r.add(group)
	return nil
}

func (r *fakeGroupRepo) SaveBatch(_ context.Context, groups []*models.Group) error {
	for _, group := range groups {
		r.add(group)
	}
	return nil
}

func (r *fakeGroupRepo) Count(_ context.Context, _ models.GroupFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeGroupRepo) Exists(_ context.Context, _ models.GroupFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeGroupRepo) ListActiveByOrganization(_ context.Context, organizationID uint) ([]*models.Group, error) {
	var out []*models.Group
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && utils.IsTrue(row.IsActive) {
			out = append(out, row)
		}
	}
	sortByID(out, func(g *models.Group) uint { return g.ID })
	return out, nil
}

func (r *fakeGroupRepo) ListMemberUserIDs(_ context.Context, groupID uint) ([]uint, error) {
	return r.members[groupID], nil
}

func (r *fakeGroupRepo) ListGroupIDsForUser(_ context.Context, userID uint) ([]uint, error) {
	var out []uint
	for groupID, userIDs := range r.members {
		for _, id := range userIDs {
			if id == userID {
				out = append(out, groupID)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) CountMembers(_ context.Context, groupID uint) (int64, error) {
	return int64(len(r.members[groupID])), nil
}

type fakeDynamicGroupRepo struct {
	rows   map[uint]*models.DynamicGroup
	nextID uint
}

func newFakeDynamicGroupRepo() *fakeDynamicGroupRepo {
	return &fakeDynamicGroupRepo{rows: make(map[uint]*models.DynamicGroup), nextID: 1}
}

func (r *fakeDynamicGroupRepo) add(group *models.DynamicGroup) *models.DynamicGroup {
	if group.ID == 0 {
		group.ID = r.nextID
		r.nextID++
	}
	r.rows[group.ID] = group
	return group
}

func (r *fakeDynamicGroupRepo) ByID(_ context.Context, id uint) (*models.DynamicGroup, error) {
	return r.rows[id], nil
}

func (r *fakeDynamicGroupRepo) ByFilter(_ context.Context, _ models.DynamicGroupFilter, _ string, _, _ int) ([]*models.DynamicGroup, error) {
	var out []*models.DynamicGroup
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeDynamicGroupRepo) Save(_ context.Context, group *models.DynamicGroup) error {
	r.add(group)
	return nil
}

func (r *fakeDynamicGroupRepo) SaveBatch(_ context.Context, groups []*models.DynamicGroup) error {
	for _, group := range groups {
		r.add(group)
	}
	return nil
}

func (r *fakeDynamicGroupRepo) Count(_ context.Context, _ models.DynamicGroupFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeDynamicGroupRepo) Exists(_ context.Context, _ models.DynamicGroupFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeDynamicGroupRepo) ListActiveByOrganization(_ context.Context, organizationID uint) ([]*models.DynamicGroup, error) {
	var out []*models.DynamicGroup
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && utils.IsTrue(row.IsActive) {
			out = append(out, row)
		}
	}
	sortByID(out, func(g *models.DynamicGroup) uint { return g.ID })
	return out, nil
}

type fakeDepartmentRepo struct {
	rows   map[uint]*models.Department
	nextID uint
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{rows: make(map[uint]*models.Department), nextID: 1}
}

func (r *fakeDepartmentRepo) add(dept *models.Department) *models.Department {
	if dept.ID == 0 {
		dept.ID = r.nextID
		r.nextID++
	}
	r.rows[dept.ID] = dept
	return dept
}

func (r *fakeDepartmentRepo) ByID(_ context.Context, id uint) (*models.Department, error) {
	return r.rows[id], nil
}

func (r *fakeDepartmentRepo) ByFilter(_ context.Context, _ models.DepartmentFilter, _ string, _, _ int) ([]*models.Department, error) {
	var out []*models.Department
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeDepartmentRepo) Save(_ context.Context, dept *models.Department) error {
	r.add(dept)
	return nil
}

func (r *fakeDepartmentRepo) SaveBatch(_ context.Context, depts []*models.Department) error {
	for _, dept := range depts {
		r.add(dept)
	}
	return nil
}

func (r *fakeDepartmentRepo) Count(_ context.Context, _ models.DepartmentFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeDepartmentRepo) Exists(_ context.Context, _ models.DepartmentFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeDepartmentRepo) ByName(_ context.Context, organizationID uint, name string) (*models.Department, error) {
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && row.Name == name {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeDepartmentRepo) ListByOrganization(_ context.Context, organizationID uint) ([]*models.Department, error) {
	var out []*models.Department
	for _, row := range r.rows {
		if row.OrganizationID == organizationID {
			out = append(out, row)
		}
	}
	sortByID(out, func(d *models.Department) uint { return d.ID })
	return out, nil
}

type fakeTemplateRepo struct {
	rows   map[uint]*models.SignatureTemplate
	nextID uint
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{rows: make(map[uint]*models.SignatureTemplate), nextID: 1}
}

func (r *fakeTemplateRepo) add(template *models.SignatureTemplate) *models.SignatureTemplate {
	if template.ID == 0 {
		template.ID = r.nextID
		r.nextID++
	}
	r.rows[template.ID] = template
	return template
}

func (r *fakeTemplateRepo) ByID(_ context.Context, id uint) (*models.SignatureTemplate, error) {
	return r.rows[id], nil
}

func (r *fakeTemplateRepo) ByFilter(_ context.Context, _ models.SignatureTemplateFilter, _ string, _, _ int) ([]*models.SignatureTemplate, error) {
	var out []*models.SignatureTemplate
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeTemplateRepo) Save(_ context.Context, template *models.SignatureTemplate) error {
	r.add(template)
	return nil
}

func (r *fakeTemplateRepo) SaveBatch(_ context.Context, templates []*models.SignatureTemplate) error {
	for _, template := range templates {
		r.add(template)
	}
	return nil
}

func (r *fakeTemplateRepo) Count(_ context.Context, _ models.SignatureTemplateFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeTemplateRepo) Exists(_ context.Context, _ models.SignatureTemplateFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeTemplateRepo) ByUUID(_ context.Context, id string) (*models.SignatureTemplate, error) {
	for _, row := range r.rows {
		if row.UUID.String() == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) ListActiveByOrganization(_ context.Context, organizationID uint) ([]*models.SignatureTemplate, error) {
	var out []*models.SignatureTemplate
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && utils.IsTrue(row.IsActive) {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeAssignmentRepo struct {
	rows   map[uint]*models.SignatureAssignment
	nextID uint
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{rows: make(map[uint]*models.SignatureAssignment), nextID: 1}
}

func (r *fakeAssignmentRepo) add(a *models.SignatureAssignment) *models.SignatureAssignment {
	if a.ID == 0 {
		a.ID = r.nextID
		r.nextID++
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	r.rows[a.ID] = a
	return a
}

func (r *fakeAssignmentRepo) ByID(_ context.Context, id uint) (*models.SignatureAssignment, error) {
	return r.rows[id], nil
}

func (r *fakeAssignmentRepo) matches(a *models.SignatureAssignment, f models.SignatureAssignmentFilter) bool {
	if f.OrganizationID != nil && a.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.TemplateID != nil && a.TemplateID != *f.TemplateID {
		return false
	}
	if f.AssignmentType != nil && a.AssignmentType != *f.AssignmentType {
		return false
	}
	if f.IsActive != nil && utils.IsTrue(a.IsActive) != *f.IsActive {
		return false
	}
	return true
}

func (r *fakeAssignmentRepo) ByFilter(_ context.Context, f models.SignatureAssignmentFilter, _ string, limit, offset int) ([]*models.SignatureAssignment, error) {
	var out []*models.SignatureAssignment
	for _, row := range r.rows {
		if r.matches(row, f) {
			out = append(out, row)
		}
	}
	sortByID(out, func(a *models.SignatureAssignment) uint { return a.ID })
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAssignmentRepo) Save(_ context.Context, a *models.SignatureAssignment) error {
	r.add(a)
	return nil
}

func (r *fakeAssignmentRepo) SaveBatch(_ context.Context, assignments []*models.SignatureAssignment) error {
	for _, a := range assignments {
		r.add(a)
	}
	return nil
}

func (r *fakeAssignmentRepo) Count(ctx context.Context, f models.SignatureAssignmentFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeAssignmentRepo) Exists(ctx context.Context, f models.SignatureAssignmentFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func (r *fakeAssignmentRepo) ByUUID(_ context.Context, id string) (*models.SignatureAssignment, error) {
	for _, row := range r.rows {
		if row.UUID.String() == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeAssignmentRepo) ListActiveByOrganization(_ context.Context, organizationID uint) ([]*models.SignatureAssignment, error) {
	var out []*models.SignatureAssignment
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && utils.IsTrue(row.IsActive) {
			out = append(out, row)
		}
	}
	sortByID(out, func(a *models.SignatureAssignment) uint { return a.ID })
	return out, nil
}

func (r *fakeAssignmentRepo) ListByTemplate(_ context.Context, templateID uint) ([]*models.SignatureAssignment, error) {
	var out []*models.SignatureAssignment
	for _, row := range r.rows {
		if row.TemplateID == templateID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) FindDuplicate(_ context.Context, organizationID, templateID uint, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*models.SignatureAssignment, error) {
	for _, row := range r.rows {
		if row.OrganizationID != organizationID || row.TemplateID != templateID || row.AssignmentType != assignmentType {
			continue
		}
		if !uintPtrEqual(row.TargetID, targetID) || !stringPtrEqual(row.TargetValue, targetValue) {
			continue
		}
		return row, nil
	}
	return nil, nil
}

func (r *fakeAssignmentRepo) Update(_ context.Context, a *models.SignatureAssignment) error {
	if _, ok := r.rows[a.ID]; !ok {
		return fmt.Errorf("assignment %d not found", a.ID)
	}
	r.rows[a.ID] = a
	return nil
}

func (r *fakeAssignmentRepo) Delete(_ context.Context, id uint) (bool, error) {
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

type fakeCampaignRepo struct {
	rows   map[uint]*models.BannerCampaign
	nextID uint
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{rows: make(map[uint]*models.BannerCampaign), nextID: 1}
}

func (r *fakeCampaignRepo) add(c *models.BannerCampaign) *models.BannerCampaign {
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.rows[c.ID] = c
	return c
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.BannerCampaign, error) {
	return r.rows[id], nil
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, _ models.BannerCampaignFilter, _ string, _, _ int) ([]*models.BannerCampaign, error) {
	var out []*models.BannerCampaign
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(_ context.Context, c *models.BannerCampaign) error {
	r.add(c)
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(_ context.Context, campaigns []*models.BannerCampaign) error {
	for _, c := range campaigns {
		r.add(c)
	}
	return nil
}

func (r *fakeCampaignRepo) Count(_ context.Context, _ models.BannerCampaignFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeCampaignRepo) Exists(_ context.Context, _ models.BannerCampaignFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeCampaignRepo) ByUUID(_ context.Context, id string) (*models.BannerCampaign, error) {
	for _, row := range r.rows {
		if row.UUID.String() == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ListDueForActivation(_ context.Context, now time.Time) ([]*models.BannerCampaign, error) {
	var out []*models.BannerCampaign
	for _, row := range r.rows {
		if row.Status == models.CampaignStatusScheduled && !row.StartAt.After(now) && row.EndAt.After(now) {
			out = append(out, row)
		}
	}
	sortByID(out, func(c *models.BannerCampaign) uint { return c.ID })
	return out, nil
}

func (r *fakeCampaignRepo) ListDueForCompletion(_ context.Context, now time.Time) ([]*models.BannerCampaign, error) {
	var out []*models.BannerCampaign
	for _, row := range r.rows {
		if row.Status == models.CampaignStatusActive && !row.EndAt.After(now) {
			out = append(out, row)
		}
	}
	sortByID(out, func(c *models.BannerCampaign) uint { return c.ID })
	return out, nil
}

func (r *fakeCampaignRepo) ListActiveByOrganization(_ context.Context, organizationID uint) ([]*models.BannerCampaign, error) {
	var out []*models.BannerCampaign
	for _, row := range r.rows {
		if row.OrganizationID == organizationID && row.Status == models.CampaignStatusActive {
			out = append(out, row)
		}
	}
	sortByID(out, func(c *models.BannerCampaign) uint { return c.ID })
	return out, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uint, status models.CampaignStatus, at time.Time) error {
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("campaign %d not found", id)
	}
	row.Status = status
	switch status {
	case models.CampaignStatusActive:
		row.LaunchedAt = &at
	case models.CampaignStatusCompleted, models.CampaignStatusCancelled:
		row.CompletedAt = &at
	}
	row.UpdatedAt = at
	return nil
}

// fakeSyncStatusRepo guards its map with a mutex because the batch
// coordinator upserts rows from concurrent goroutines
type fakeSyncStatusRepo struct {
	mu     sync.Mutex
	rows   map[uint]*models.SignatureSyncStatus // keyed by user ID
	nextID uint
}

func newFakeSyncStatusRepo() *fakeSyncStatusRepo {
	return &fakeSyncStatusRepo{rows: make(map[uint]*models.SignatureSyncStatus), nextID: 1}
}

func (r *fakeSyncStatusRepo) ByID(_ context.Context, id uint) (*models.SignatureSyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeSyncStatusRepo) matches(row *models.SignatureSyncStatus, f models.SignatureSyncStatusFilter) bool {
	if f.OrganizationID != nil && row.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.UserID != nil && row.UserID != *f.UserID {
		return false
	}
	if f.SyncState != nil && row.SyncState != *f.SyncState {
		return false
	}
	return true
}

func (r *fakeSyncStatusRepo) ByFilter(_ context.Context, f models.SignatureSyncStatusFilter, _ string, limit, offset int) ([]*models.SignatureSyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SignatureSyncStatus
	for _, row := range r.rows {
		if r.matches(row, f) {
			out = append(out, row)
		}
	}
	sortByID(out, func(s *models.SignatureSyncStatus) uint { return s.UserID })
	if offset > 0 && offset < len(out) {
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSyncStatusRepo) Save(ctx context.Context, row *models.SignatureSyncStatus) error {
	return r.Upsert(ctx, row)
}

func (r *fakeSyncStatusRepo) SaveBatch(ctx context.Context, rows []*models.SignatureSyncStatus) error {
	for _, row := range rows {
		if err := r.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSyncStatusRepo) Count(ctx context.Context, f models.SignatureSyncStatusFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeSyncStatusRepo) Exists(ctx context.Context, f models.SignatureSyncStatusFilter) (bool, error) {
	c, _ := r.Count(ctx, f)
	return c > 0, nil
}

func (r *fakeSyncStatusRepo) ByUserID(_ context.Context, userID uint) (*models.SignatureSyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[userID], nil
}

func (r *fakeSyncStatusRepo) ByUserIDs(_ context.Context, userIDs []uint) ([]*models.SignatureSyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SignatureSyncStatus
	for _, id := range userIDs {
		if row, ok := r.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeSyncStatusRepo) Upsert(_ context.Context, row *models.SignatureSyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[row.UserID]
	if ok {
		row.ID = existing.ID
	} else if row.ID == 0 {
		row.ID = r.nextID
		r.nextID++
	}
	row.UpdatedAt = utils.UTCNow()
	r.rows[row.UserID] = row
	return nil
}

func (r *fakeSyncStatusRepo) Update(ctx context.Context, row *models.SignatureSyncStatus) error {
	return r.Upsert(ctx, row)
}

func (r *fakeSyncStatusRepo) MarkPending(_ context.Context, rows []*models.SignatureSyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := utils.UTCNow()
	for _, row := range rows {
		existing, ok := r.rows[row.UserID]
		if !ok {
			existing = &models.SignatureSyncStatus{
				ID:             r.nextID,
				UserID:         row.UserID,
				OrganizationID: row.OrganizationID,
			}
			r.nextID++
			r.rows[row.UserID] = existing
		}
		existing.SyncState = models.SyncStatePending
		existing.SyncAttempts = 0
		existing.SyncError = nil
		existing.UpdatedAt = now
	}
	return nil
}

func (r *fakeSyncStatusRepo) CountByState(_ context.Context, organizationID uint) (map[models.SyncState]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.SyncState]int64)
	for _, row := range r.rows {
		if row.OrganizationID == organizationID {
			out[row.SyncState]++
		}
	}
	return out, nil
}

func (r *fakeSyncStatusRepo) LastSyncedAt(_ context.Context, organizationID uint) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for _, row := range r.rows {
		if row.OrganizationID != organizationID || row.LastSyncedAt == nil {
			continue
		}
		if latest == nil || row.LastSyncedAt.After(*latest) {
			latest = row.LastSyncedAt
		}
	}
	return latest, nil
}

// fakeDeployer records deployed signatures per mailbox and can be told to
// fail; locked because batches deploy concurrently
type fakeDeployer struct {
	mu       sync.Mutex
	deployed map[string]string
	setCalls int
	failWith error
}

func newFakeDeployer() *fakeDeployer {
	return &fakeDeployer{deployed: make(map[string]string)}
}

func (d *fakeDeployer) SetSignature(_ context.Context, _ *models.Organization, userEmail, signatureHTML string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCalls++
	if d.failWith != nil {
		return d.failWith
	}
	d.deployed[userEmail] = signatureHTML
	return nil
}

func (d *fakeDeployer) FetchSignature(_ context.Context, _ *models.Organization, userEmail string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deployed[userEmail], nil
}

// flowEnv wires every fake together the way main wires the real stack
type flowEnv struct {
	orgs        *fakeOrgRepo
	users       *fakeUserRepo
	groups      *fakeGroupRepo
	dynamics    *fakeDynamicGroupRepo
	departments *fakeDepartmentRepo
	templates   *fakeTemplateRepo
	assignments *fakeAssignmentRepo
	campaigns   *fakeCampaignRepo
	syncRows    *fakeSyncStatusRepo
	deployer    *fakeDeployer

	resolver AssignmentResolverFlow
	engine   SyncEngineFlow
	batch    BatchSyncFlow
	campaign CampaignFlow
	flow     AssignmentFlow
}

func newFlowEnv() *flowEnv {
	env := &flowEnv{
		orgs:        newFakeOrgRepo(),
		users:       newFakeUserRepo(),
		groups:      newFakeGroupRepo(),
		dynamics:    newFakeDynamicGroupRepo(),
		departments: newFakeDepartmentRepo(),
		templates:   newFakeTemplateRepo(),
		assignments: newFakeAssignmentRepo(),
		campaigns:   newFakeCampaignRepo(),
		syncRows:    newFakeSyncStatusRepo(),
		deployer:    newFakeDeployer(),
	}
	env.resolver = NewAssignmentResolverFlow(env.users, env.assignments, env.groups, env.dynamics, env.departments, env.campaigns)
	env.engine = NewSyncEngineFlow(env.users, env.orgs, env.templates, env.syncRows, env.resolver, services.NewPlaceholderTemplateRenderer(), env.deployer)
	env.batch = NewBatchSyncFlow(env.users, env.orgs, env.syncRows, env.engine, env.deployer)
	env.campaign = NewCampaignFlow(env.campaigns, env.groups, env.syncRows, env.resolver, nil)
	env.flow = NewAssignmentFlow(env.assignments, env.templates, env.users, env.groups, env.dynamics, env.departments, env.orgs, env.syncRows, env.resolver, nil)
	return env
}

func (e *flowEnv) addOrg() *models.Organization {
	return e.orgs.add(&models.Organization{
		UUID:             uuid.New(),
		Name:             "Acme Corp",
		Domain:           "acme.test",
		GoogleConfigured: utils.ToPtr(true),
		SyncEnabled:      utils.ToPtr(true),
		IsActive:         utils.ToPtr(true),
	})
}

func (e *flowEnv) addUser(orgID uint, email string) *models.DirectoryUser {
	return e.users.add(&models.DirectoryUser{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		PrimaryEmail:   email,
		FirstName:      "Jane",
		LastName:       "Doe",
		IsActive:       utils.ToPtr(true),
	})
}

func (e *flowEnv) addTemplate(orgID uint, html string) *models.SignatureTemplate {
	return e.templates.add(&models.SignatureTemplate{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		Name:           "Default",
		HTML:           html,
		IsActive:       utils.ToPtr(true),
	})
}

func (e *flowEnv) addAssignment(orgID, templateID uint, t models.AssignmentType, targetID *uint, targetValue *string) *models.SignatureAssignment {
	return e.assignments.add(&models.SignatureAssignment{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		TemplateID:     templateID,
		AssignmentType: t,
		TargetID:       targetID,
		TargetValue:    targetValue,
		Priority:       t.DefaultPriority(),
		IsActive:       utils.ToPtr(true),
		CreatedBy:      1,
		CreatedAt:      utils.UTCNow(),
	})
}

func sortByID[T any](rows []T, id func(T) uint) {
	sort.Slice(rows, func(i, j int) bool { return id(rows[i]) < id(rows[j]) })
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
