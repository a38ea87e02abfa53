package gemini

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mock is the deterministic Generator used when no API key is configured or
// mock mode is forced. Every payload it produces is valid against the
// corresponding analysis mode's schema, so the rest of the pipeline behaves
// exactly as it does against the real API.
type Mock struct{}

// NewMock creates the mock generator.
func NewMock() *Mock {
	log.Info().Msg("Using mock generator (set GEMINI_API_KEY for real analysis)")
	return &Mock{}
}

var mockPayloads = map[string]string{
	"summary": `{
  "summary": "This is a mock video analysis. The actual analysis will extract key information from your video.",
  "key_topics": ["Topic 1", "Topic 2", "Topic 3"],
  "moments": [
    {"time": "00:15", "description": "Introduction"},
    {"time": "01:30", "description": "Main content"},
    {"time": "03:45", "description": "Conclusion"}
  ]
}`,
	"key_moments": `{
  "moments": [
    {"timestamp": "00:30", "description": "Important point discussed", "importance": "High"},
    {"timestamp": "02:15", "description": "Key demonstration", "importance": "Critical"}
  ]
}`,
	"transcript": `{
  "transcript": [
    {"time": "00:00", "speaker": "Narrator", "text": "Video begins..."},
    {"time": "00:30", "speaker": "Narrator", "text": "Main content starts..."}
  ]
}`,
	"objects": `{
  "scenes": [
    {"time": "00:00", "objects": ["person", "background"], "people": "1 presenter", "setting": "studio"},
    {"time": "00:30", "objects": ["presenter", "screen"], "people": "1 presenter", "setting": "studio"}
  ]
}`,
	"sentiment": `{
  "overall": "neutral",
  "moments": [
    {"time": "00:10", "emotion": "curious", "description": "Opening question posed"},
    {"time": "01:00", "emotion": "enthusiastic", "description": "Main topic introduced"}
  ]
}`,
	"educational": `{
  "concepts": [
    {"name": "Mock concept", "explanation": "Placeholder explanation produced without the Gemini API."}
  ],
  "takeaways": ["Configure GEMINI_API_KEY for real analysis."]
}`,
	"custom": `{
  "analysis": "This is mock custom analysis output. Configure GEMINI_API_KEY for real analysis."
}`,
}

const mockChatResponse = "This is a mock answer based on the video content. " +
	"The video contains information that would be fully analyzed with the Gemini API. " +
	"Configure GEMINI_API_KEY for real answers."

// Generate returns a canned, schema-valid payload for analysis modes and a
// fixed text for chat requests.
func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	if payload, ok := mockPayloads[req.Mode]; ok {
		return payload, nil
	}
	return mockChatResponse, nil
}

// GenerateStream yields the canned response a couple of words at a time.
func (m *Mock) GenerateStream(ctx context.Context, req Request) (<-chan Chunk, error) {
	text, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		words := strings.Fields(text)
		for i := 0; i < len(words); i += 2 {
			end := i + 2
			if end > len(words) {
				end = len(words)
			}
			select {
			case ch <- Chunk{Text: strings.Join(words[i:end], " ") + " "}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
