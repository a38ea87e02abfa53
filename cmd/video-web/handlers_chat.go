package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/apperr"
)

// handleChatStream answers a question about a video over Server-Sent Events.
// Query parameters: filename, question. Events: start, chunk, end, error.
func (s *server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	filename := r.URL.Query().Get("filename")
	question := r.URL.Query().Get("question")

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sendEvent := func(event string, data interface{}) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}

	stream, err := s.chat.Ask(r.Context(), sess, filename, question)
	if err != nil {
		sendEvent("error", map[string]string{"message": err.Error(), "kind": errKind(err)})
		return
	}

	sendEvent("start", map[string]string{"filename": filename})

	var full strings.Builder
	for chunk := range stream {
		select {
		case <-r.Context().Done():
			log.Debug().Str("filename", filename).Msg("Chat client disconnected")
			return
		default:
		}
		if chunk.Err != nil {
			sendEvent("error", map[string]string{"message": chunk.Err.Error(), "kind": errKind(chunk.Err)})
			return
		}
		full.WriteString(chunk.Text)
		sendEvent("chunk", map[string]string{"text": chunk.Text})
	}

	sendEvent("end", map[string]string{"full_response": full.String()})
}

// handleChatHistory returns the recorded conversation for a video.
func (s *server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		respondAppError(w, err)
		return
	}

	filename := r.URL.Query().Get("filename")
	msgs, err := sess.Messages(filename)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func errKind(err error) string {
	if k, ok := apperr.KindOf(err); ok {
		return k.String()
	}
	return "internal"
}
