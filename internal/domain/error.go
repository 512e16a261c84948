package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("not authorized")

	// Listing lifecycle
	ErrValidationIncomplete = errors.New("listing is missing required fields")
	ErrDeliveryFailed       = errors.New("outbound delivery failed")

	// Payments
	ErrPaymentRejected = errors.New("payment rejected")
	ErrPaymentsOff     = errors.New("payments are not configured")
)
