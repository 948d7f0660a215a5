// Package dto contains request and response payloads exchanged with the business flows
package dto

import (
	"github.com/clearsign-io/clearsign/models"
)

// CreateAssignmentRequest represents the request to create a signature assignment
type CreateAssignmentRequest struct {
	OrganizationID uint    `json:"-"`
	CreatedBy      uint    `json:"-"`
	TemplateID     uint    `json:"template_id" validate:"required,min=1"`
	AssignmentType string  `json:"assignment_type" validate:"required,oneof=user group dynamic_group department ou organization"`
	TargetID       *uint   `json:"target_id,omitempty" validate:"omitempty,min=1"`
	TargetValue    *string `json:"target_value,omitempty" validate:"omitempty,min=1,max=512"`
	Priority       *int    `json:"priority,omitempty" validate:"omitempty,min=0,max=1000"`
}

// CreateAssignmentResponse represents the response to create a signature assignment
type CreateAssignmentResponse struct {
	Message    string        `json:"message"`
	Assignment AssignmentDTO `json:"assignment"`
}

// UpdateAssignmentRequest represents the request to update an assignment's
// priority or active flag
type UpdateAssignmentRequest struct {
	ID       uint  `json:"-"`
	Priority *int  `json:"priority,omitempty" validate:"omitempty,min=0,max=1000"`
	IsActive *bool `json:"is_active,omitempty"`
}

// UpdateAssignmentResponse represents the response to update an assignment
type UpdateAssignmentResponse struct {
	Message    string        `json:"message"`
	Assignment AssignmentDTO `json:"assignment"`
}

// DeleteAssignmentResponse represents the response to delete an assignment
type DeleteAssignmentResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// ListAssignmentsRequest represents the filters for listing assignments
type ListAssignmentsRequest struct {
	OrganizationID uint    `json:"-"`
	TemplateID     *uint   `json:"template_id,omitempty"`
	AssignmentType *string `json:"assignment_type,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
}

// ListAssignmentsResponse represents the response to list assignments
type ListAssignmentsResponse struct {
	Message string          `json:"message"`
	Items   []AssignmentDTO `json:"items"`
	Total   int64           `json:"total"`
}

// AssignmentDTO is the outward representation of a signature assignment
type AssignmentDTO struct {
	ID             uint    `json:"id"`
	UUID           string  `json:"uuid"`
	OrganizationID uint    `json:"organization_id"`
	TemplateID     uint    `json:"template_id"`
	TemplateName   *string `json:"template_name,omitempty"`
	AssignmentType string  `json:"assignment_type"`
	TargetID       *uint   `json:"target_id,omitempty"`
	TargetValue    *string `json:"target_value,omitempty"`
	Priority       int     `json:"priority"`
	IsActive       bool    `json:"is_active"`
	CreatedBy      uint    `json:"created_by"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// AvailableTargetDTO is a selectable assignment target with its member count
type AvailableTargetDTO struct {
	ID    *uint   `json:"id,omitempty"`
	Value *string `json:"value,omitempty"`
	Name  string  `json:"name"`
	Count int64   `json:"count"`
}

// ListAvailableTargetsResponse represents the response to enumerate assignment targets
type ListAvailableTargetsResponse struct {
	Message string               `json:"message"`
	Type    string               `json:"type"`
	Items   []AvailableTargetDTO `json:"items"`
}

// AffectedUserDTO identifies a user a rule change would affect
type AffectedUserDTO struct {
	ID           uint   `json:"id"`
	PrimaryEmail string `json:"primary_email"`
	FullName     string `json:"full_name"`
}

// PreviewAffectedUsersResponse represents the response to preview a
// hypothetical assignment's member set
type PreviewAffectedUsersResponse struct {
	Message string            `json:"message"`
	Items   []AffectedUserDTO `json:"items"`
	Total   int               `json:"total"`
}

// ToAssignmentDTO converts an assignment model to its outward representation
func ToAssignmentDTO(a models.SignatureAssignment) AssignmentDTO {
	out := AssignmentDTO{
		ID:             a.ID,
		UUID:           a.UUID.String(),
		OrganizationID: a.OrganizationID,
		TemplateID:     a.TemplateID,
		AssignmentType: a.AssignmentType.String(),
		TargetID:       a.TargetID,
		TargetValue:    a.TargetValue,
		Priority:       a.Priority,
		IsActive:       a.IsActive == nil || *a.IsActive,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:      a.UpdatedAt.UTC().Format(timeLayout),
	}
	if a.Template != nil {
		out.TemplateName = &a.Template.Name
	}
	return out
}
