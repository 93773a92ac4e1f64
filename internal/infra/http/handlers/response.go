package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/usecase"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func statusForCode(code string) int {
	switch code {
	case usecase.CodeValidation:
		return http.StatusBadRequest
	case usecase.CodeNotFound:
		return http.StatusNotFound
	case usecase.CodeConflict:
		return http.StatusConflict
	case usecase.CodePaymentRequired:
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// writeUseCaseError maps a use case error onto the envelope. Domain errors
// carry a caller-safe message; anything else is logged and answered with a
// generic 500.
func writeUseCaseError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		writeErrorResponse(w, statusForCode(de.Code), de.Code, de.Message)
		return
	}

	log.Error("request failed",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.Error(err))
	writeErrorResponse(w, http.StatusInternalServerError, usecase.CodeInternal, "internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, usecase.CodeValidation, "invalid JSON body")
		return false
	}
	return true
}
