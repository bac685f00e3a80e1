package leads

import "errors"

var (
	// ErrMissingPhone is returned when a lead is saved without a phone key
	ErrMissingPhone = errors.New("leads: phone number is required")

	// ErrLeadNotFound is returned when no lead exists for a phone number
	ErrLeadNotFound = errors.New("leads: lead not found")
)
