// Package gemini provides the generative multimodal capability behind the
// analysis dispatcher and the chat manager. Two implementations exist: the
// real Gemini API client and a deterministic mock selected at startup, so
// downstream components never special-case an unconfigured API.
package gemini

import "context"

// Request is one generative invocation. When VideoPath is set the request is
// multimodal (the file is uploaded alongside the prompt); otherwise it is
// text-only, grounded on whatever the prompt carries.
type Request struct {
	System string // system instruction
	Prompt string
	// VideoPath/VideoMIME reference the local video file for video-native
	// analysis. Empty for transcript-grounded and chat requests.
	VideoPath string
	VideoMIME string
	// Mode is the analysis mode hint. The real client ignores it; the mock
	// uses it to produce schema-valid placeholder content.
	Mode string
}

// Chunk is one streamed response fragment. A chunk with Err set terminates
// the stream; the channel closes on normal completion.
type Chunk struct {
	Text string
	Err  error
}

// Generator is the generative capability contract.
type Generator interface {
	// Generate performs a one-shot request and returns the full response text.
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateStream performs a streaming request. Chunks arrive in
	// generation order; the channel closes when the response is complete.
	// Cancelling ctx stops the stream.
	GenerateStream(ctx context.Context, req Request) (<-chan Chunk, error)
}
