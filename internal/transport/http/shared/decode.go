package shared

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	dErrors "stagepass/pkg/domain-errors"
)

// maxBodyBytes caps request bodies; every payload this service accepts is
// small.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that validate and parse their
// own fields after decoding.
type Validatable interface {
	Validate() error
}

type validatablePtr[T any] interface {
	*T
	Validatable
}

// DecodeAndPrepare decodes the JSON body into T and runs its Validate. On
// failure it writes the error response and returns ok=false; handlers just
// return.
func DecodeAndPrepare[T any, PT validatablePtr[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (PT, bool) {
	req := PT(new(T))

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil && err != io.EOF {
		logger.WarnContext(r.Context(), "malformed request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
