// Package businessflow contains the core business logic for signature assignment resolution and sync
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Assignment validation errors (rejected synchronously, never persisted)
	ErrAssignmentTypeInvalid    = errors.New("assignment type is invalid")
	ErrAssignmentTargetRequired = errors.New("assignment target is required for this type")
	ErrAssignmentTargetConflict = errors.New("assignment target must not be set for this type")
	ErrAssignmentTargetNotFound = errors.New("assignment target not found in organization")
	ErrAssignmentDuplicate      = errors.New("an identical assignment already exists")
	ErrAssignmentNotFound       = errors.New("assignment not found")
	ErrAssignmentUpdateRequired = errors.New("at least one field must be provided for update")

	// Organization errors
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrGoogleNotConfigured  = errors.New("organization has no Google credentials configured")

	// Resolution and sync errors
	ErrUserNotFound     = errors.New("user not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrRenderFailed     = errors.New("signature render failed")
	ErrDeployFailed     = errors.New("signature deploy failed")

	// Campaign errors
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCampaignWindowInvalid = errors.New("campaign end time must be after start time")
	ErrCampaignNotScheduled  = errors.New("campaign is not in scheduled state")
	ErrCampaignNotActive     = errors.New("campaign is not active")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAssignmentTypeInvalid(err error) bool {
	return errors.Is(err, ErrAssignmentTypeInvalid)
}

func IsAssignmentTargetRequired(err error) bool {
	return errors.Is(err, ErrAssignmentTargetRequired)
}

func IsAssignmentTargetNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentTargetNotFound)
}

func IsAssignmentDuplicate(err error) bool {
	return errors.Is(err, ErrAssignmentDuplicate)
}

func IsAssignmentNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound)
}

func IsOrganizationNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound)
}

func IsGoogleNotConfigured(err error) bool {
	return errors.Is(err, ErrGoogleNotConfigured)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsRenderFailed(err error) bool {
	return errors.Is(err, ErrRenderFailed)
}

func IsDeployFailed(err error) bool {
	return errors.Is(err, ErrDeployFailed)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignWindowInvalid(err error) bool {
	return errors.Is(err, ErrCampaignWindowInvalid)
}
