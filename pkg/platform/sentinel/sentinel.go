package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: a uniqueness or version constraint was violated
//   - ErrExpired: deadline or token has passed
//   - ErrAlreadyUsed: one-shot resource (entry token) already consumed
//   - ErrInvalidState: entity in the wrong state for the requested operation
//   - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
