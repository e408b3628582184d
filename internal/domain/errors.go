package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLockHeld         = errors.New("lock already held")
	ErrSuperseded       = errors.New("fetch superseded by a newer request")
	ErrUnknownBookmaker = errors.New("unknown bookmaker")
)
