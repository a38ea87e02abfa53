// Package chat answers free-form questions about an analyzed video, grounded
// on the session's cached analyses and transcript, streaming the answer as it
// is generated.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/apperr"
	"github.com/fpang/gemini-video-web/internal/assets"
	"github.com/fpang/gemini-video-web/internal/gemini"
	"github.com/fpang/gemini-video-web/internal/session"
)

// transcriptCap bounds how much transcript text is injected into the chat
// prompt.
const transcriptCap = 3000

// Manager streams grounded chat answers and records the conversation on the
// session.
type Manager struct {
	gen gemini.Generator
	now func() time.Time
}

// NewManager wires the generative capability.
func NewManager(gen gemini.Generator) *Manager {
	return &Manager{gen: gen, now: time.Now}
}

// Ask streams the answer to question about filename. Chunks arrive in
// generation order; the channel closes when the answer is complete. The full
// assistant message is committed to the conversation once streaming finishes,
// or with Partial set when the caller disconnects mid-stream.
//
// Overlapping questions for the same video are serialized, so answers commit
// in question order and each answer sees the previous one in its history.
func (m *Manager) Ask(ctx context.Context, sess *session.Session, filename, question string) (<-chan gemini.Chunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.InvalidInput("empty question")
	}
	if _, err := sess.Video(filename); err != nil {
		return nil, err
	}

	analyses, err := sess.AnalysesFor(filename)
	if err != nil {
		return nil, err
	}
	t, _, err := sess.Transcript(filename)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 && !t.Available() {
		return nil, apperr.ErrNotReady
	}

	out := make(chan gemini.Chunk, 16)
	go func() {
		defer close(out)
		m.run(ctx, sess, filename, question, out)
	}()
	return out, nil
}

func (m *Manager) run(ctx context.Context, sess *session.Session, filename, question string, out chan<- gemini.Chunk) {
	lock := sess.ChatLock(filename)
	lock.Lock()
	defer lock.Unlock()

	fail := func(err error) {
		select {
		case out <- gemini.Chunk{Err: err}:
		case <-ctx.Done():
		}
	}

	// Snapshot the grounding context under the chat lock so a queued question
	// sees the answer committed before it.
	data, err := m.promptData(sess, filename, question)
	if err != nil {
		fail(err)
		return
	}
	if err := sess.AppendMessage(filename, session.ChatMessage{
		Role:      "user",
		Text:      question,
		CreatedAt: m.now(),
	}); err != nil {
		fail(err)
		return
	}

	stream, err := m.gen.GenerateStream(ctx, gemini.Request{
		Prompt: assets.RenderChatPrompt(data),
	})
	if err != nil {
		fail(apperr.New(apperr.KindAnalysis, "generation-failed", err))
		return
	}

	var sb strings.Builder
	partial := false
	for chunk := range stream {
		if chunk.Err != nil {
			partial = true
			fail(apperr.New(apperr.KindAnalysis, "stream-failed", chunk.Err))
			break
		}
		sb.WriteString(chunk.Text)
		select {
		case out <- chunk:
		case <-ctx.Done():
			partial = true
		}
		if partial {
			break
		}
	}
	if ctx.Err() != nil {
		partial = true
	}

	if sb.Len() == 0 {
		return
	}
	msg := session.ChatMessage{
		Role:      "assistant",
		Text:      sb.String(),
		CreatedAt: m.now(),
		Partial:   partial,
	}
	if err := sess.AppendMessage(filename, msg); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("Failed to commit assistant message")
	}
}

// promptData assembles the grounding context for one question.
func (m *Manager) promptData(sess *session.Session, filename, question string) (assets.ChatPromptData, error) {
	var data assets.ChatPromptData

	analyses, err := sess.AnalysesFor(filename)
	if err != nil {
		return data, err
	}
	var ab strings.Builder
	for _, res := range analyses {
		raw, err := json.Marshal(res.Payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(&ab, "### %s\n%s\n\n", res.Mode, raw)
	}
	data.Analyses = strings.TrimSpace(ab.String())

	t, _, err := sess.Transcript(filename)
	if err != nil {
		return data, err
	}
	if t.Available() {
		text := t.FormattedText()
		if len(text) > transcriptCap {
			text = text[:transcriptCap] + "\n[transcript truncated]"
		}
		data.Transcript = text
	}

	history, err := sess.Messages(filename)
	if err != nil {
		return data, err
	}
	var hb strings.Builder
	for _, msg := range history {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&hb, "%s: %s\n", role, msg.Text)
	}
	data.History = strings.TrimSpace(hb.String())
	data.Question = question
	return data, nil
}
