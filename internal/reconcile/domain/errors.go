package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidDate         = errors.New("invalid_date")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrNoPhoneNumbers      = errors.New("No phone numbers assigned to this organization")
	ErrUnknownResource     = errors.New("unknown_sync_resource")
)
