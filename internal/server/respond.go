package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/audio"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/store"
)

const contentTypeJSON = "application/json"

// errorResponse is the uniform error body for all API failures.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(responseWriter http.ResponseWriter, status int, body any) {
	responseWriter.Header().Set("Content-Type", contentTypeJSON)
	responseWriter.WriteHeader(status)

	_ = json.NewEncoder(responseWriter).Encode(body)
}

func writeError(responseWriter http.ResponseWriter, status int, message string) {
	writeJSON(responseWriter, status, errorResponse{Error: message})
}

// writeDomainError maps a domain error to an HTTP status. Validation errors
// are handled before this point; everything arriving here is a provider,
// store, or audio failure.
func writeDomainError(responseWriter http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAgentNotFound),
		errors.Is(err, audio.ErrAudioNotFound):
		writeError(responseWriter, http.StatusNotFound, err.Error())
	case errors.Is(err, audio.ErrInvalidName):
		writeError(responseWriter, http.StatusBadRequest, err.Error())
	case errors.Is(err, elevenlabs.ErrRateLimited):
		writeError(responseWriter, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, elevenlabs.ErrQuotaExceeded):
		writeError(responseWriter, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, elevenlabs.ErrInvalidRequest):
		writeError(responseWriter, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, elevenlabs.ErrInvalidCredentials),
		errors.Is(err, elevenlabs.ErrServerError):
		writeError(responseWriter, http.StatusBadGateway, err.Error())
	default:
		writeError(responseWriter, http.StatusBadGateway, err.Error())
	}
}
