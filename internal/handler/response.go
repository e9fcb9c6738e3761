package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/click2call/relay-server-go/internal/errors"
	"github.com/click2call/relay-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs server-side failures with their cause before writing the
// client-facing body.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logFailure(r, op, err)
	httputil.WriteError(w, err)
}

func logFailure(r *http.Request, op string, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeDatabase, apperrors.ErrCodeInternal, apperrors.ErrCodePushAuthFailed:
		log.Error().Err(err).Str("op", op).Str("path", r.URL.Path).Msg("request failed")
	}
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		status, appErr := decodeError(err)
		httputil.WriteErrorWithStatus(w, status, appErr)
		return false
	}
	return true
}

func decodeError(err error) (int, *apperrors.AppError) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, apperrors.ValidationError("Request body too large")
	}
	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, apperrors.ValidationError("Request body is required")
	}
	return http.StatusBadRequest, apperrors.ValidationError("Invalid request body")
}
