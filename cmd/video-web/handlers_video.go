package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/session"
)

// handleDownload acquires a video from a remote URL into the session.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
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

	rec, err := s.acquirer.Acquire(r.Context(), sess, req.URL)
	if err != nil {
		respondAppError(w, err)
		return
	}

	body := map[string]interface{}{"video": rec}
	// Transcript resolution is best-effort here; failure shows up as an
	// origin-none transcript, never a download error.
	if t, _, err := s.transcripts.Resolve(r.Context(), sess, rec.Filename, false); err == nil {
		body["transcript"] = t
	} else {
		log.Warn().Err(err).Str("filename", rec.Filename).Msg("Transcript resolution failed during download")
	}
	respondJSON(w, http.StatusOK, body)
}

// handleUpload stores a direct multipart file upload (field "video").
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing file field \"video\"")
		return
	}
	defer file.Close()

	rec, err := s.acquirer.AcquireUpload(r.Context(), sess, header.Filename, file)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"video": rec})
}

// handleVideoInfo probes metadata for a URL without downloading it.
func (s *server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	probe, err := s.acquirer.ProbeInfo(r.Context(), req.URL)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, probe)
}

// handleListVideos returns the session's videos, newest first.
func (s *server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	videos, err := sess.Videos()
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

// handleStream serves the video bytes with range support for the player.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	filename := r.PathValue("filename")
	rec, err := sess.Video(filename)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if rec.Status != session.StatusReady {
		httpError(w, http.StatusConflict, "video is not ready")
		return
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("Failed to open video file")
		httpError(w, http.StatusInternalServerError, "video file unavailable")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "video file unavailable")
		return
	}

	http.ServeContent(w, r, rec.Filename, info.ModTime(), f)
}
