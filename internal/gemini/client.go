package gemini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Client is the real Gemini implementation of Generator.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini API client for the given model.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	if model == "" {
		model = GetModelName()
	}
	return &Client{client: c, model: model}, nil
}

func (c *Client) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.7)),
		MaxOutputTokens: 8192,
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return cfg
}

// buildParts assembles the request parts, uploading the video via the Files
// API when the request is multimodal. The returned cleanup deletes the
// uploaded file and must be called once the request (or stream) is done.
func (c *Client) buildParts(ctx context.Context, req Request) ([]*genai.Part, func(), error) {
	cleanup := func() {}
	var parts []*genai.Part

	if req.VideoPath != "" {
		uploaded, err := c.uploadVideo(ctx, req.VideoPath, req.VideoMIME)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if _, err := c.client.Files.Delete(context.Background(), uploaded.Name, nil); err != nil {
				log.Warn().Err(err).Str("file", uploaded.Name).Msg("Failed to delete uploaded Gemini file")
			}
		}
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{
				MIMEType: uploaded.MIMEType,
				FileURI:  uploaded.URI,
			},
		})
	}

	parts = append(parts, &genai.Part{Text: req.Prompt})
	return parts, cleanup, nil
}

// Generate performs a one-shot request.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	parts, cleanup, err := c.buildParts(ctx, req)
	if err != nil {
		return "", err
	}
	defer cleanup()

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config(req))
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Str("model", c.model).Msg("Gemini request failed")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || resp.Text() == "" {
		return "", fmt.Errorf("received empty response from Gemini API")
	}

	ev := log.Debug().
		Int("response_length", len(resp.Text())).
		Dur("duration", elapsed).
		Str("model", c.model)
	if resp.UsageMetadata != nil {
		ev = ev.Int32("input_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("output_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	ev.Msg("Gemini response received")

	return resp.Text(), nil
}

// GenerateStream performs a streaming request. The returned channel carries
// chunks in generation order and closes when the response completes.
func (c *Client) GenerateStream(ctx context.Context, req Request) (<-chan Chunk, error) {
	parts, cleanup, err := c.buildParts(ctx, req)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, c.config(req))

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)
		defer cleanup()

		for result, err := range iter {
			if err != nil {
				select {
				case ch <- Chunk{Err: fmt.Errorf("stream error: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				continue
			}
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case ch <- Chunk{Text: part.Text}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// uploadVideo uploads a local video file to the Gemini Files API and waits
// for it to finish processing.
func (c *Client) uploadVideo(ctx context.Context, localPath, mimeType string) (*genai.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if mimeType == "" {
		mimeType = VideoMIMEType(localPath)
	}

	log.Debug().
		Str("path", localPath).
		Int64("size_bytes", info.Size()).
		Str("mime_type", mimeType).
		Msg("Uploading video to Gemini Files API")

	uploadStart := time.Now()
	file, err := c.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	// Poll until the file is ACTIVE (processed) or FAILED.
	const pollInterval = 5 * time.Second
	const pollTimeout = 5 * time.Minute
	deadline := time.Now().Add(pollTimeout)

	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for Gemini file processing after %v", pollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		file, err = c.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("get file state: %w", err)
		}
	}

	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("Gemini file processing failed: %s", file.Name)
	}

	log.Info().
		Str("name", file.Name).
		Str("uri", file.URI).
		Int64("size_bytes", info.Size()).
		Dur("total_time", time.Since(uploadStart)).
		Msg("Video uploaded to Gemini Files API")

	return file, nil
}

// VideoMIMEType maps a video filename to its MIME type.
func VideoMIMEType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	default:
		return "video/mp4"
	}
}
