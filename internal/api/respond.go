package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	apperrors "machtms/internal/errors"
	"machtms/pkg/logger"
)

// maxBodyBytes caps request bodies; uploads go straight to object
// storage, not through this API.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument, apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodePermissionDenied:
		return http.StatusForbidden
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeExternalService, apperrors.CodeQueueFailure,
		apperrors.CodeInitializationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Named("api").Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)

	var body errorBody
	body.Error.Code = string(code)
	if typed, ok := apperrors.From(err); ok {
		body.Error.Message = typed.Message()
	} else {
		body.Error.Message = http.StatusText(status)
	}
	if status >= 500 {
		logger.Named("api").Error("request failed", "code", string(code), "error", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, into any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(into); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, err, "malformed request body")
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
