package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"learnhub/internal/logger"
	"learnhub/internal/service"
	"learnhub/internal/validation"
)

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// errorStatus maps a service error to the response status and the message
// safe to show the caller.
func errorStatus(err error) (int, errorBody) {
	var ve validation.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Message: ve.Message, Field: ve.Field}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized, errorBody{Message: ErrUnauthorized}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, errorBody{Message: ErrForbiddenMsg}
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidVote):
		return http.StatusBadRequest, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrSlugTaken):
		return http.StatusConflict, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrPremiumRequired):
		return http.StatusPaymentRequired, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrBlockedContent):
		return http.StatusUnprocessableEntity, errorBody{Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Message: ErrInternalServerError}
}

// respondWithError writes the JSON error for err. Only unexpected errors are
// logged at error level.
func respondWithError(w http.ResponseWriter, log *logger.Logger, logMsg string, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(logMsg, "error", err)
	} else {
		log.Debug(logMsg, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", service.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, ErrInvalidJSON)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", service.ErrInvalidInput, name)
	}
	return n, nil
}
