package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AjCapo90/lingua-forge/internal/domain"
	"github.com/AjCapo90/lingua-forge/pkg/ctxutil"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error  string          `json:"error"`
	Code   string          `json:"code"`
	Fields []FieldResponse `json:"fields,omitempty"`
}

// FieldResponse is one field-level validation failure.
type FieldResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v) //nolint:errcheck
}

// writeError maps domain errors to HTTP status codes. Unexpected errors are
// logged and reported without details.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})

	case errors.Is(err, domain.ErrValidation):
		resp := ErrorResponse{Error: "invalid request", Code: "VALIDATION"}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Errors {
				resp.Fields = append(resp.Fields, FieldResponse{Field: fe.Field, Message: fe.Message})
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)

	default:
		log.ErrorContext(r.Context(), "unexpected API error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
	}
}
