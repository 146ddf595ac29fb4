package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrSlugTaken           = errors.New("slug already taken")
	ErrUnknownJobType      = errors.New("unknown job type")
	ErrProjectLocked       = errors.New("project locked by another job")
	ErrNoAllowancePeriod   = errors.New("no active allowance period")
	ErrInsufficientCredits = errors.New("insufficient credits")
)
