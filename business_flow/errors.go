// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tenant-related errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is inactive")

	// Campaign-related errors
	ErrContactsRequired        = errors.New("at least one contact is required")
	ErrInvalidTemplateType     = errors.New("invalid template type")
	ErrDuplicateExternalID     = errors.New("external id already used for this tenant")
	ErrTemplateNotFound        = errors.New("no active template for this type")
	ErrTemplateNoVariations    = errors.New("template has no active variations")
	ErrInvalidContactPhone     = errors.New("invalid contact phone")
	ErrInvalidDueDate          = errors.New("invalid due date")
	ErrRenderedMessageTooLong  = errors.New("rendered message exceeds length limit")
	ErrBillingCampaignNotFound = errors.New("billing campaign not found")
	ErrInstanceNotFound        = errors.New("whatsapp instance not found")

	// Cycle-related errors
	ErrCycleNotFound      = errors.New("billing cycle not found")
	ErrCycleCompleted     = errors.New("billing cycle already completed")
	ErrInvalidCycleReason = errors.New("invalid cancellation reason")

	// Queue-related errors
	ErrQueueNotFound = errors.New("billing queue not found")
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

func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

func IsTenantInactive(err error) bool {
	return errors.Is(err, ErrTenantInactive)
}

func IsContactsRequired(err error) bool {
	return errors.Is(err, ErrContactsRequired)
}

func IsInvalidTemplateType(err error) bool {
	return errors.Is(err, ErrInvalidTemplateType)
}

func IsDuplicateExternalID(err error) bool {
	return errors.Is(err, ErrDuplicateExternalID)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsTemplateNoVariations(err error) bool {
	return errors.Is(err, ErrTemplateNoVariations)
}

func IsInvalidContactPhone(err error) bool {
	return errors.Is(err, ErrInvalidContactPhone)
}

func IsInvalidDueDate(err error) bool {
	return errors.Is(err, ErrInvalidDueDate)
}

func IsRenderedMessageTooLong(err error) bool {
	return errors.Is(err, ErrRenderedMessageTooLong)
}

func IsBillingCampaignNotFound(err error) bool {
	return errors.Is(err, ErrBillingCampaignNotFound)
}

func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

func IsCycleNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound)
}

func IsCycleCompleted(err error) bool {
	return errors.Is(err, ErrCycleCompleted)
}

func IsInvalidCycleReason(err error) bool {
	return errors.Is(err, ErrInvalidCycleReason)
}

func IsQueueNotFound(err error) bool {
	return errors.Is(err, ErrQueueNotFound)
}
