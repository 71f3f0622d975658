package handler

import (
	dErrors "stagepass/pkg/domain-errors"
)

// VerifyRequest is the body for POST /verify.
type VerifyRequest struct {
	EntryToken    string `json:"entry_token"`
	TransactionID string `json:"transaction_id"`
}

// Validate checks the request fields.
func (r *VerifyRequest) Validate() error {
	if r.EntryToken == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entry_token is required")
	}
	if r.TransactionID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "transaction_id is required")
	}
	return nil
}
