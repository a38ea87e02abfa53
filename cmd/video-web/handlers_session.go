package main

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/session"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

func init() {
	zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
}

// handleCleanup evicts the caller's session and everything it owns.
// Idempotent: cleaning an unknown or already-evicted session still succeeds.
func (s *server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	s.store.Evict(id)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleExport streams a ZIP of the session: a manifest of every video,
// transcript, analysis and conversation, plus the video files themselves.
// Entries use Zstandard compression; the already-compressed video bytes are
// stored as-is.
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	manifest, videos, err := exportManifest(sess)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if len(videos) == 0 {
		httpError(w, http.StatusNotFound, "nothing to export")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="session-%s.zip"`, sess.ID))

	zw := zip.NewWriter(w)
	defer zw.Close()

	header := &zip.FileHeader{
		Name:     "manifest.json",
		Method:   zipMethodZstd,
		Modified: time.Now(),
	}
	mw, err := zw.CreateHeader(header)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create manifest entry")
		return
	}
	if _, err := mw.Write(manifest); err != nil {
		log.Error().Err(err).Msg("Failed to write manifest entry")
		return
	}

	for _, rec := range videos {
		if rec.Status != session.StatusReady {
			continue
		}
		if err := addVideoEntry(zw, rec); err != nil {
			// The response is already streaming; log and stop.
			log.Error().Err(err).Str("filename", rec.Filename).Msg("Failed to add video to export")
			return
		}
	}

	log.Info().Str("session", sess.ID).Int("videos", len(videos)).Msg("Session exported")
}

func addVideoEntry(zw *zip.Writer, rec session.VideoRecord) error {
	f, err := os.Open(rec.Path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	header := &zip.FileHeader{
		Name:     "videos/" + rec.Filename,
		Method:   zip.Store,
		Modified: rec.CreatedAt,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write zip entry: %w", err)
	}
	return nil
}

// exportManifest snapshots the session state as JSON, returning the video
// records alongside so the caller can bundle the files.
func exportManifest(sess *session.Session) ([]byte, []session.VideoRecord, error) {
	videos, err := sess.Videos()
	if err != nil {
		return nil, nil, err
	}
	analyses, err := sess.Analyses()
	if err != nil {
		return nil, nil, err
	}

	transcripts := make(map[string]*session.Transcript)
	chats := make(map[string][]session.ChatMessage)
	for _, rec := range videos {
		if t, ok, err := sess.Transcript(rec.Filename); err != nil {
			return nil, nil, err
		} else if ok {
			transcripts[rec.Filename] = t
		}
		msgs, err := sess.Messages(rec.Filename)
		if err != nil {
			return nil, nil, err
		}
		if len(msgs) > 0 {
			chats[rec.Filename] = msgs
		}
	}

	manifest := map[string]interface{}{
		"session_id":  sess.ID,
		"exported_at": time.Now().UTC(),
		"videos":      videos,
		"transcripts": transcripts,
		"analyses":    analyses,
		"chats":       chats,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, videos, nil
}
