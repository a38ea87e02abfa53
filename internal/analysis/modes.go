// Package analysis dispatches structured video analysis requests: it picks
// the prompt for a mode, grounds it on the transcript when one is available,
// calls the generative backend and caches the schema-checked result on the
// session.
package analysis

import (
	"github.com/fpang/gemini-video-web/internal/assets"
)

// Mode IDs accepted by the dispatcher.
const (
	ModeSummary     = "summary"
	ModeKeyMoments  = "key_moments"
	ModeTranscript  = "transcript"
	ModeObjects     = "objects"
	ModeSentiment   = "sentiment"
	ModeEducational = "educational"
	ModeCustom      = "custom"
)

// Mode describes one analysis mode: its catalog entry, its prompt and the
// top-level fields its JSON payload must carry.
type Mode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`

	prompt   string
	required []string
	// videoOnly marks modes that inspect the frames themselves; these never
	// run transcript-grounded even when a transcript exists.
	videoOnly bool
}

var modeOrder = []string{
	ModeSummary,
	ModeKeyMoments,
	ModeTranscript,
	ModeObjects,
	ModeSentiment,
	ModeEducational,
	ModeCustom,
}

var modes = map[string]Mode{
	ModeSummary: {
		ID:          ModeSummary,
		Name:        "Video Summary",
		Emoji:       "📝",
		Description: "Comprehensive summary with key topics and moments",
		prompt:      assets.SummaryPrompt,
		required:    []string{"summary", "key_topics", "moments"},
	},
	ModeKeyMoments: {
		ID:          ModeKeyMoments,
		Name:        "Key Moments",
		Emoji:       "🎯",
		Description: "Most important moments with timestamps",
		prompt:      assets.KeyMomentsPrompt,
		required:    []string{"moments"},
	},
	ModeTranscript: {
		ID:          ModeTranscript,
		Name:        "Transcription",
		Emoji:       "💬",
		Description: "Spoken dialogue and on-screen text",
		prompt:      assets.TranscriptPrompt,
		required:    []string{"transcript"},
	},
	ModeObjects: {
		ID:          ModeObjects,
		Name:        "Object Detection",
		Emoji:       "🔍",
		Description: "Objects, people and settings per scene",
		prompt:      assets.ObjectsPrompt,
		required:    []string{"scenes"},
		videoOnly:   true,
	},
	ModeSentiment: {
		ID:          ModeSentiment,
		Name:        "Sentiment Analysis",
		Emoji:       "😊",
		Description: "Emotional tone across the video",
		prompt:      assets.SentimentPrompt,
		required:    []string{"overall", "moments"},
	},
	ModeEducational: {
		ID:          ModeEducational,
		Name:        "Educational Content",
		Emoji:       "🎓",
		Description: "Concepts explained and key takeaways",
		prompt:      assets.EducationalPrompt,
		required:    []string{"concepts", "takeaways"},
	},
	ModeCustom: {
		ID:          ModeCustom,
		Name:        "Custom Analysis",
		Emoji:       "✏️",
		Description: "Analysis driven by your own prompt",
		required:    []string{"analysis"},
	},
}

// LookupMode returns the mode for id.
func LookupMode(id string) (Mode, bool) {
	m, ok := modes[id]
	return m, ok
}

// ListModes returns the mode catalog in its fixed display order.
func ListModes() []Mode {
	out := make([]Mode, 0, len(modeOrder))
	for _, id := range modeOrder {
		out = append(out, modes[id])
	}
	return out
}
