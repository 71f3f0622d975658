package handler

import (
	dErrors "stagepass/pkg/domain-errors"
)

// CheckInRequest is the body for POST /checkin.
type CheckInRequest struct {
	EntryToken string `json:"entry_token"`
}

// Validate checks the request fields.
func (r *CheckInRequest) Validate() error {
	if r.EntryToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entry_token is required")
	}
	return nil
}
