// Package transcript resolves cached-caption transcripts for acquired
// videos, trying languages in a fixed priority order and degrading to
// origin "none" when nothing is available.
package transcript

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/media"
	"github.com/fpang/gemini-video-web/internal/session"
)

// languagePriority is the fixed caption fallback order. After these, any
// listed language is accepted.
var languagePriority = []string{"pt", "en", "es"}

// Resolver resolves transcripts and caches them on the session.
type Resolver struct {
	captions CaptionFetcher
}

// NewResolver wires the caption capability.
func NewResolver(c CaptionFetcher) *Resolver {
	return &Resolver{captions: c}
}

// Resolve returns the transcript for filename, fetching captions on the
// first call and serving the session cache afterwards. force bypasses the
// cache for an explicit re-resolution.
//
// Resolution failure is not an error: the returned transcript has origin
// "none" and a FailureReason the analysis dispatcher uses to fall back to
// video-native analysis. Errors are reserved for session-level failures
// (expired session, unknown filename).
func (r *Resolver) Resolve(ctx context.Context, sess *session.Session, filename string, force bool) (*session.Transcript, bool, error) {
	rec, err := sess.Video(filename)
	if err != nil {
		return nil, false, err
	}

	if !force {
		if t, ok, err := sess.Transcript(filename); err != nil {
			return nil, false, err
		} else if ok {
			return t, true, nil
		}
	}

	t := r.resolve(ctx, rec)
	if err := sess.SetTranscript(filename, t); err != nil {
		return nil, false, err
	}
	return t, false, nil
}

func (r *Resolver) resolve(ctx context.Context, rec session.VideoRecord) *session.Transcript {
	if rec.Source == session.SourceUpload {
		return &session.Transcript{Origin: session.OriginNone, FailureReason: "local-source"}
	}
	videoID, ok := media.ExtractYouTubeID(rec.Source)
	if !ok {
		return &session.Transcript{Origin: session.OriginNone, FailureReason: "local-source"}
	}

	blocked := false
	tried := make(map[string]bool)

	attempt := func(lang string) *session.Transcript {
		tried[lang] = true
		segments, err := r.captions.Fetch(ctx, videoID, lang)
		if err != nil {
			if errors.Is(err, ErrBlocked) {
				blocked = true
			}
			log.Debug().Err(err).Str("video_id", videoID).Str("lang", lang).Msg("Caption attempt failed")
			return nil
		}
		log.Info().
			Str("video_id", videoID).
			Str("lang", lang).
			Int("segments", len(segments)).
			Msg("Transcript resolved")
		return &session.Transcript{
			Language: lang,
			Origin:   session.OriginCaption,
			Segments: segments,
		}
	}

	// Fixed priority order; the first success wins and no further language
	// is attempted. A failure on one language never aborts the rest.
	for _, lang := range languagePriority {
		if t := attempt(lang); t != nil {
			return t
		}
	}

	// Last resort: whatever track the video actually has.
	langs, err := r.captions.List(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			blocked = true
		}
		log.Debug().Err(err).Str("video_id", videoID).Msg("Caption list failed")
	}
	for _, lang := range langs {
		if tried[lang] {
			continue
		}
		if t := attempt(lang); t != nil {
			return t
		}
	}

	reason := "no-captions"
	if blocked {
		reason = "blocked"
	}
	log.Info().Str("video_id", videoID).Str("reason", reason).Msg("No transcript available")
	return &session.Transcript{Origin: session.OriginNone, FailureReason: reason}
}
