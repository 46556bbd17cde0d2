package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// Error names sent in the "error" field of failure bodies.
const (
	ErrNameNotFound      = "EntityNotFound"
	ErrNameConflict      = "EntityAlreadyExists"
	ErrNameBadRequest    = "BadRequest"
	ErrNameInvalidBody   = "JSONParseError"
	ErrNameCredentials   = "InvalidCredentials"
	ErrNameMissingAuth   = "MissingRequestCredentials"
	ErrNameUnknownApp    = "AppNotFound"
	ErrNameTimeout       = "RequestTimeout"
	ErrNameServerFailure = "KinveyInternalErrorRetry"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, name, description string) {
	writeJSON(w, code, errorBody{Error: name, Description: description})
}

// classify maps service errors to a status code and error name.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, ErrNameNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, ErrNameConflict
	case errors.Is(err, common.ErrorValidation), errors.Is(err, query.ErrInvalidQuery):
		return http.StatusBadRequest, ErrNameBadRequest
	case errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidLoginPassword),
		errors.Is(err, common.ErrInvalidAppCredentials),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, ErrNameCredentials
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrNameTimeout
	default:
		return http.StatusInternalServerError, ErrNameServerFailure
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, name := classify(err)
	description := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		description = "internal error"
	}
	writeError(w, code, name, description)
}
