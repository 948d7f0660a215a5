package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignmentTypeDefaultPriority(t *testing.T) {
	cases := []struct {
		assignmentType AssignmentType
		priority       int
	}{
		{AssignmentTypeUser, 10},
		{AssignmentTypeDynamicGroup, 20},
		{AssignmentTypeGroup, 30},
		{AssignmentTypeDepartment, 40},
		{AssignmentTypeOU, 50},
		{AssignmentTypeOrganization, 100},
	}
	for _, tc := range cases {
		t.Run(tc.assignmentType.String(), func(t *testing.T) {
			assert.Equal(t, tc.priority, tc.assignmentType.DefaultPriority())
		})
	}
}

func TestAssignmentTypeValid(t *testing.T) {
	for _, valid := range []AssignmentType{
		AssignmentTypeUser, AssignmentTypeGroup, AssignmentTypeDynamicGroup,
		AssignmentTypeDepartment, AssignmentTypeOU, AssignmentTypeOrganization,
	} {
		assert.True(t, valid.Valid(), "expected %s to be valid", valid)
	}
	assert.False(t, AssignmentType("").Valid())
	assert.False(t, AssignmentType("team").Valid())
}

func TestAssignmentTypeTargetShape(t *testing.T) {
	t.Run("IDAddressedTypes", func(t *testing.T) {
		for _, at := range []AssignmentType{AssignmentTypeUser, AssignmentTypeGroup, AssignmentTypeDynamicGroup, AssignmentTypeDepartment} {
			assert.True(t, at.RequiresTargetID(), "expected %s to require target_id", at)
			assert.False(t, at.RequiresTargetValue())
		}
	})

	t.Run("ValueAddressedTypes", func(t *testing.T) {
		assert.True(t, AssignmentTypeOU.RequiresTargetValue())
		assert.False(t, AssignmentTypeOU.RequiresTargetID())
	})

	t.Run("OrganizationCarriesNeither", func(t *testing.T) {
		assert.False(t, AssignmentTypeOrganization.RequiresTargetID())
		assert.False(t, AssignmentTypeOrganization.RequiresTargetValue())
	})
}

func TestAssignmentTableName(t *testing.T) {
	assert.Equal(t, "signature_assignments", SignatureAssignment{}.TableName())
}
