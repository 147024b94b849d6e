package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/media"
)

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, api.Envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, api.Envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, api.Envelope{Error: message})
}

// statusFor maps service errors onto HTTP status codes and a client-safe
// message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrValidation):
		return http.StatusBadRequest, media.Message(err)
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, media.ErrInfrastructure):
		return http.StatusBadGateway, "object storage unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteError writes err as an envelope. Validation failures carry one
// detail per violated constraint.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	env := api.Envelope{Error: msg}

	var many media.ValidationErrors
	var one *media.ValidationError
	switch {
	case errors.As(err, &many):
		env.Details = many
	case errors.As(err, &one):
		env.Details = []*media.ValidationError{one}
	}
	JSON(w, status, env)
}

// decode reads a JSON body into dst, rejecting unknown fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &media.ValidationError{Constraint: "body", Message: "malformed request body"}
	}
	return nil
}

const maxBodyBytes = 1 << 20
