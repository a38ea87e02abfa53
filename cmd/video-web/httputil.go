package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/apperr"
)

const sessionCookie = "session_id"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps the error taxonomy onto HTTP statuses. Degraded
// analysis failures keep the raw model text in the body so the frontend can
// still show something.
func respondAppError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error().Err(err).Msg("Unclassified handler error")
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
		if ae.Reason == apperr.ReasonUnknownFilename {
			status = http.StatusNotFound
		}
	case apperr.KindAcquisition, apperr.KindTranscript:
		status = http.StatusBadGateway
		if ae.Reason == "oversize" {
			status = http.StatusRequestEntityTooLarge
		}
	case apperr.KindAnalysis:
		status = http.StatusUnprocessableEntity
	case apperr.KindNotReady:
		status = http.StatusConflict
	case apperr.KindSessionExpired:
		status = http.StatusGone
	}

	body := map[string]string{
		"error":  ae.Error(),
		"kind":   ae.Kind.String(),
		"reason": ae.Reason,
	}
	if ae.RawText != "" {
		body["raw_text"] = ae.RawText
	}
	respondJSON(w, status, body)
}

// sessionID returns the caller's session id, minting one (and setting the
// cookie) on first contact.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput("invalid JSON body: %v", err)
	}
	return nil
}
