package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clearsign-io/clearsign/models"
	"github.com/clearsign-io/clearsign/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates a syncable organization
func (tf *TestFixtures) CreateTestOrganization() (*models.Organization, error) {
	suffix := fmt.Sprintf("%06d", rand.Intn(900000)+100000)
	org := &models.Organization{
		UUID:             uuid.New(),
		Name:             "Test Org " + suffix,
		Domain:           fmt.Sprintf("test-%s.example.com", suffix),
		GoogleCustomerID: utils.ToPtr("C" + suffix),
		GoogleConfigured: utils.ToPtr(true),
		SyncEnabled:      utils.ToPtr(true),
		IsActive:         utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create test organization: %w", err)
	}
	return org, nil
}

// CreateTestUser creates an active directory user in the organization
func (tf *TestFixtures) CreateTestUser(org *models.Organization, department, orgUnitPath *string) (*models.DirectoryUser, error) {
	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	user := &models.DirectoryUser{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		PrimaryEmail:   fmt.Sprintf("user.%s@%s", suffix, org.Domain),
		FirstName:      "Jane",
		LastName:       "Doe",
		Department:     department,
		OrgUnitPath:    orgUnitPath,
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestGroup creates a static group with the given members
func (tf *TestFixtures) CreateTestGroup(org *models.Organization, members ...*models.DirectoryUser) (*models.Group, error) {
	group := &models.Group{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Name:           fmt.Sprintf("Group %06d", rand.Intn(900000)+100000),
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(group).Error; err != nil {
		return nil, fmt.Errorf("failed to create test group: %w", err)
	}
	for _, member := range members {
		gm := &models.GroupMember{GroupID: group.ID, UserID: member.ID}
		if err := tf.DB.DB.Create(gm).Error; err != nil {
			return nil, fmt.Errorf("failed to add test group member: %w", err)
		}
	}
	return group, nil
}

// CreateTestDynamicGroup creates a rule-based group
func (tf *TestFixtures) CreateTestDynamicGroup(org *models.Organization, field models.DynamicRuleField, operator models.DynamicRuleOperator, values ...string) (*models.DynamicGroup, error) {
	group := &models.DynamicGroup{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Name:           fmt.Sprintf("Dynamic %06d", rand.Intn(900000)+100000),
		RuleField:      field,
		RuleOperator:   operator,
		RuleValues:     pq.StringArray(values),
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(group).Error; err != nil {
		return nil, fmt.Errorf("failed to create test dynamic group: %w", err)
	}
	return group, nil
}

// CreateTestDepartment creates a department row
func (tf *TestFixtures) CreateTestDepartment(org *models.Organization, name string) (*models.Department, error) {
	dept := &models.Department{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Name:           name,
	}
	if err := tf.DB.DB.Create(dept).Error; err != nil {
		return nil, fmt.Errorf("failed to create test department: %w", err)
	}
	return dept, nil
}

// CreateTestTemplate creates an active signature template
func (tf *TestFixtures) CreateTestTemplate(org *models.Organization, html string) (*models.SignatureTemplate, error) {
	if html == "" {
		html = "<div>{{full_name}} | {{email}}</div>"
	}
	template := &models.SignatureTemplate{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Name:           fmt.Sprintf("Template %06d", rand.Intn(900000)+100000),
		HTML:           html,
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create test template: %w", err)
	}
	return template, nil
}

// CreateTestAssignment creates an active assignment with the type's default priority
func (tf *TestFixtures) CreateTestAssignment(org *models.Organization, template *models.SignatureTemplate, assignmentType models.AssignmentType, targetID *uint, targetValue *string) (*models.SignatureAssignment, error) {
	assignment := &models.SignatureAssignment{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		TemplateID:     template.ID,
		AssignmentType: assignmentType,
		TargetID:       targetID,
		TargetValue:    targetValue,
		Priority:       assignmentType.DefaultPriority(),
		IsActive:       utils.ToPtr(true),
		CreatedBy:      1,
	}
	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return assignment, nil
}

// CreateTestCampaign creates a campaign in the given status with a window
// around now
func (tf *TestFixtures) CreateTestCampaign(org *models.Organization, status models.CampaignStatus, targetType models.CampaignTargetType) (*models.BannerCampaign, error) {
	now := utils.UTCNow()
	campaign := &models.BannerCampaign{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Name:           fmt.Sprintf("Campaign %06d", rand.Intn(900000)+100000),
		BannerURL:      "https://cdn.example.com/banner.png",
		TargetType:     targetType,
		StartAt:        now.Add(-time.Hour),
		EndAt:          now.Add(time.Hour),
		Status:         status,
		CreatedBy:      1,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}
