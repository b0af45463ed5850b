package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"zhangdan/internal/core"
	"zhangdan/internal/log"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

// writeEnvelope writes status and the envelope; Code mirrors the HTTP status.
func writeEnvelope(w http.ResponseWriter, status int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Code: status, Data: data, Msg: msg})
}

func writeOK(w http.ResponseWriter, data any, msg string) {
	writeEnvelope(w, http.StatusOK, data, msg)
}

// statusFor maps a service error onto an HTTP status: unknown ids are 404, everything else 500.
func statusFor(err error) int {
	if errors.Is(err, core.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes an envelope whose msg is prefix followed by the error text.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, prefix string) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	switch {
	case status == http.StatusNotFound, core.IsValidation(err):
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldOperation, op, log.FieldStatusCode, status, log.FieldError, err)
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op, log.FieldStatusCode, status, log.FieldError, err)
	}
	writeEnvelope(w, status, nil, prefix+": "+err.Error())
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusBadRequest, nil, msg)
}
