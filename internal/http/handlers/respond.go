package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stellr/server/internal/errs"
)

// respondJSON writes the payload with the given status
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondTaxonomyError maps the error taxonomy onto status codes without
// reinterpreting semantics; anything unrecognized is a 500.
func respondTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsOtpError(err):
		respondWithError(w, http.StatusBadRequest, otpErrorMessage(err))
	case errors.Is(err, errs.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrAuthentication), errors.Is(err, errs.ErrInvalidToken):
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, errs.ErrAuthorization):
		respondWithError(w, http.StatusForbidden, "not enrolled")
	case errors.Is(err, errs.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrConflict):
		respondWithError(w, http.StatusConflict, "already exists")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func otpErrorMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrOtpExpired):
		return "otp expired"
	case errors.Is(err, errs.ErrOtpLocked):
		return "otp locked"
	case errors.Is(err, errs.ErrOtpConsumed):
		return "otp already used"
	default:
		return "invalid otp"
	}
}
