// Package shared centralizes JSON response encoding and domain error
// translation so every handler emits the same envelope.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "stagepass/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code to an HTTP status and writes the error
// envelope. Non-domain errors become opaque 500s; their detail belongs in
// logs, not responses.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}

	var domainErr *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &domainErr) {
		resp.Message = domainErr.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
