package main

import (
	"net/http"

	"github.com/fpang/gemini-video-web/internal/analysis"
)

// handleTranscript resolves (or returns the cached) transcript for a video.
func (s *server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Force    bool   `json:"force,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	t, cached, err := s.transcripts.Resolve(r.Context(), sess, req.Filename, req.Force)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": t,
		"available":  t.Available(),
		"cached":     cached,
	})
}

// handleAnalyze runs one analysis mode, serving the session cache when the
// same request was already answered.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename     string `json:"filename"`
		Mode         string `json:"mode"`
		CustomPrompt string `json:"custom_prompt,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	res, cached, err := s.dispatcher.Analyze(r.Context(), sess, req.Filename, req.Mode, req.CustomPrompt)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": res,
		"cached":   cached,
	})
}

// handleAnalysisModes returns the mode catalog for the frontend picker.
func (s *server) handleAnalysisModes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"modes": analysis.ListModes()})
}
