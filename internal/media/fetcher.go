package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ProbeResult is the best-effort metadata a probe returns without
// downloading anything.
type ProbeResult struct {
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"` // seconds
	ViewCount   int64   `json:"view_count"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
}

// Fetcher is the external download capability. The real implementation
// shells out to yt-dlp; tests substitute a fake.
type Fetcher interface {
	// Probe returns video metadata without downloading.
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	// Fetch downloads the video at url into dest as an MP4 container.
	Fetch(ctx context.Context, url string, dest string) error
}

const (
	probeTimeout = 30 * time.Second
	fetchTimeout = 5 * time.Minute
)

// YtdlpFetcher runs the yt-dlp tool. Downloads are capped at 720p and merged
// into MP4 so the generative capability receives one predictable container.
type YtdlpFetcher struct {
	// Path overrides the binary name, for tests and non-PATH installs.
	Path string
}

func (f *YtdlpFetcher) binary() string {
	if f.Path != "" {
		return f.Path
	}
	return "yt-dlp"
}

// CheckAvailable reports whether the download tool is on PATH. Called at
// startup so a missing tool fails loudly instead of on the first request.
func (f *YtdlpFetcher) CheckAvailable() error {
	path, err := exec.LookPath(f.binary())
	if err != nil {
		return fmt.Errorf("%s not found in PATH: remote video download will be unavailable", f.binary())
	}
	log.Debug().Str("path", path).Msg("yt-dlp found")
	return nil
}

// Probe runs yt-dlp --dump-json --skip-download and parses the metadata.
func (f *YtdlpFetcher) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary(), "--dump-json", "--skip-download", url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, toolError("probe", err, stderr.String())
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}
	return &result, nil
}

// Fetch downloads url into dest. Quality is capped at 720p with a fallback
// to the best available format.
func (f *YtdlpFetcher) Fetch(ctx context.Context, url string, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.binary(),
		"-o", dest,
		"-f", "best[height<=720]/best",
		"--merge-output-format", "mp4",
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return toolError("download", err, stderr.String())
	}

	log.Info().
		Str("url", url).
		Str("dest", dest).
		Dur("duration", time.Since(start)).
		Msg("Video downloaded")
	return nil
}

// toolError wraps a yt-dlp failure with its stderr tail so the reason the
// tool printed survives to the caller.
func toolError(op string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > 500 {
		stderr = stderr[:500]
	}
	if stderr != "" {
		return fmt.Errorf("yt-dlp %s failed: %w: %s", op, err, stderr)
	}
	return fmt.Errorf("yt-dlp %s failed: %w", op, err)
}

// classifyToolFailure maps a tool error to a machine-readable reason code
// the frontend can act on.
func classifyToolFailure(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "sign in to confirm"), strings.Contains(msg, "bot"):
		return "anti-bot-block"
	case strings.Contains(msg, "unsupported url"):
		return "unsupported-source"
	default:
		return "download-failed"
	}
}
