package editor

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/reorder"
	"github.com/debemdeboas/lending-admin/internal/session"
)

const (
	kindConfirmationRequired = "confirmation_required"
	kindInvalidOperation     = "invalid_operation"
)

type errorResponse struct {
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Retry    bool           `json:"retry"`
	Remedies []model.Remedy `json:"remedies,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Error().Err(err).Msg("Error encoding response")
	}
}

func classify(err error) (int, errorResponse) {
	resp := errorResponse{Message: err.Error()}

	var conflictErr *model.ConflictError
	switch {
	case errors.Is(err, session.ErrCancelled):
		resp.Kind = kindConfirmationRequired
		return http.StatusPreconditionFailed, resp

	case errors.As(err, &conflictErr):
		resp.Kind = string(model.KindConflict)
		resp.Remedies = conflictErr.Remedies
		return http.StatusConflict, resp

	case errors.Is(err, errBadRequest),
		errors.Is(err, errUnknownOp),
		errors.Is(err, errUnknownRemedy),
		errors.Is(err, reorder.ErrUnknownItem),
		errors.Is(err, reorder.ErrIndexOutOfRange),
		errors.Is(err, session.ErrNoGesture):
		resp.Kind = kindInvalidOperation
		return http.StatusBadRequest, resp

	case errors.Is(err, errNoPreview):
		resp.Kind = string(model.KindNotFound)
		return http.StatusNotFound, resp
	}

	resp.Kind = string(model.KindOf(err))
	switch model.ErrorKind(resp.Kind) {
	case model.KindValidation:
		return http.StatusUnprocessableEntity, resp
	case model.KindTransport:
		resp.Retry = true
		return http.StatusBadGateway, resp
	case model.KindNotFound:
		return http.StatusNotFound, resp
	}
	return http.StatusInternalServerError, resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)

	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, status, resp)
}
