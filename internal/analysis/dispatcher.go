package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/apperr"
	"github.com/fpang/gemini-video-web/internal/assets"
	"github.com/fpang/gemini-video-web/internal/gemini"
	"github.com/fpang/gemini-video-web/internal/jsonutil"
	"github.com/fpang/gemini-video-web/internal/session"
	"github.com/fpang/gemini-video-web/internal/transcript"
)

// Dispatcher runs analysis modes against the generative backend with
// per-session result caching.
type Dispatcher struct {
	gen         gemini.Generator
	transcripts *transcript.Resolver
	now         func() time.Time
}

// NewDispatcher wires the generative and transcript capabilities.
func NewDispatcher(gen gemini.Generator, res *transcript.Resolver) *Dispatcher {
	return &Dispatcher{gen: gen, transcripts: res, now: time.Now}
}

// CacheKey builds the session cache key for one analysis. Custom-mode keys
// include a digest of the trimmed prompt so distinct prompts cache
// independently while retried identical prompts hit the cache.
func CacheKey(filename, mode, customPrompt string) string {
	key := filename + "\x00" + mode
	if mode == ModeCustom {
		sum := sha256.Sum256([]byte(strings.TrimSpace(customPrompt)))
		key += "\x00" + hex.EncodeToString(sum[:])[:16]
	}
	return key
}

// Analyze runs one analysis mode for filename, returning the cached result
// when the same request was already answered in this session. The boolean
// reports a cache hit.
func (d *Dispatcher) Analyze(ctx context.Context, sess *session.Session, filename, mode, customPrompt string) (*session.AnalysisResult, bool, error) {
	m, ok := LookupMode(mode)
	if !ok {
		return nil, false, apperr.InvalidInput("unknown analysis mode %q", mode)
	}
	if mode == ModeCustom && strings.TrimSpace(customPrompt) == "" {
		return nil, false, apperr.InvalidInput("custom mode requires a prompt")
	}

	key := CacheKey(filename, mode, customPrompt)
	if res, hit, err := sess.Analysis(key); err != nil {
		return nil, false, err
	} else if hit {
		log.Debug().Str("filename", filename).Str("mode", mode).Msg("Analysis cache hit")
		return res, true, nil
	}

	rec, err := sess.Video(filename)
	if err != nil {
		return nil, false, err
	}
	if rec.Status != session.StatusReady {
		return nil, false, apperr.New(apperr.KindNotReady, "video-not-ready",
			fmt.Errorf("video %q has status %q", filename, rec.Status))
	}

	t, _, err := d.transcripts.Resolve(ctx, sess, filename, false)
	if err != nil {
		return nil, false, err
	}

	// A cached caption transcript answers the transcript mode directly.
	if mode == ModeTranscript && t.Available() && t.Origin == session.OriginCaption {
		payload, err := captionPayload(t)
		if err != nil {
			return nil, false, err
		}
		res := &session.AnalysisResult{
			Filename:  filename,
			Mode:      mode,
			Payload:   payload,
			CreatedAt: d.now(),
		}
		if err := sess.SetAnalysis(key, res); err != nil {
			return nil, false, err
		}
		log.Info().Str("filename", filename).Str("lang", t.Language).Msg("Transcript mode answered from captions")
		return res, false, nil
	}

	req := d.buildRequest(rec, m, t, customPrompt)

	payload, err := d.generateStructured(ctx, req, m.required)
	if err != nil {
		return nil, false, err
	}

	res := &session.AnalysisResult{
		Filename:  filename,
		Mode:      mode,
		Payload:   payload,
		CreatedAt: d.now(),
	}
	if err := sess.SetAnalysis(key, res); err != nil {
		return nil, false, err
	}
	return res, false, nil
}

// buildRequest picks transcript-grounded text analysis when a transcript is
// available and the mode allows it, and video-native analysis otherwise.
func (d *Dispatcher) buildRequest(rec session.VideoRecord, m Mode, t *session.Transcript, customPrompt string) gemini.Request {
	task := m.prompt
	if m.ID == ModeCustom {
		task = assets.RenderCustomPrompt(customPrompt)
	}

	req := gemini.Request{
		System: assets.SystemInstructionPrompt,
		Mode:   m.ID,
	}

	if t.Available() && !m.videoOnly {
		req.Prompt = assets.RenderTranscriptAnalysisPrompt(task, t.FormattedText())
		log.Debug().Str("filename", rec.Filename).Str("mode", m.ID).Msg("Using transcript-grounded analysis")
		return req
	}

	req.Prompt = task
	req.VideoPath = rec.Path
	req.VideoMIME = gemini.VideoMIMEType(rec.Filename)
	log.Debug().Str("filename", rec.Filename).Str("mode", m.ID).Msg("Using video-native analysis")
	return req
}

// generateStructured runs the request and parses the response against the
// mode's required fields, retrying once with an explicit JSON-repair
// instruction before giving up with the raw text preserved.
func (d *Dispatcher) generateStructured(ctx context.Context, req gemini.Request, required []string) (map[string]json.RawMessage, error) {
	raw, err := d.gen.Generate(ctx, req)
	if err != nil {
		return nil, apperr.New(apperr.KindAnalysis, "generation-failed", err)
	}

	payload, parseErr := jsonutil.ParseObject(raw, required)
	if parseErr == nil {
		return payload, nil
	}
	log.Warn().Err(parseErr).Str("mode", req.Mode).Msg("Analysis response failed schema parse, retrying")

	retry := req
	retry.Prompt = req.Prompt + "\n\n" + assets.JSONRepairPrompt
	raw, err = d.gen.Generate(ctx, retry)
	if err != nil {
		return nil, apperr.New(apperr.KindAnalysis, "generation-failed", err)
	}

	payload, parseErr = jsonutil.ParseObject(raw, required)
	if parseErr == nil {
		return payload, nil
	}

	return nil, &apperr.Error{
		Kind:    apperr.KindAnalysis,
		Reason:  "invalid-json",
		RawText: raw,
		Err:     parseErr,
	}
}

// captionPayload renders an existing caption transcript in the transcript
// mode's output shape.
func captionPayload(t *session.Transcript) (map[string]json.RawMessage, error) {
	type line struct {
		Time string `json:"time"`
		Text string `json:"text"`
	}
	lines := make([]line, 0, len(t.Segments))
	for _, seg := range t.Segments {
		lines = append(lines, line{
			Time: fmt.Sprintf("%02d:%02d", int(seg.Start)/60, int(seg.Start)%60),
			Text: seg.Text,
		})
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript payload: %w", err)
	}
	lang, err := json.Marshal(t.Language)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript language: %w", err)
	}
	return map[string]json.RawMessage{
		"transcript": raw,
		"language":   lang,
	}, nil
}
