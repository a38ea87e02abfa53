package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/session"
)

// Caption-fetch capability errors.
var (
	// ErrNotFound means no caption track exists for the requested language.
	ErrNotFound = errors.New("no captions for language")
	// ErrBlocked means the caption endpoint refused the request (rate limit
	// or IP block), common in containerized environments.
	ErrBlocked = errors.New("caption requests blocked")
)

// CaptionFetcher is the external caption capability. The real implementation
// talks to YouTube's timedtext endpoint; tests substitute a fake.
type CaptionFetcher interface {
	// Fetch returns the caption track for one language.
	Fetch(ctx context.Context, videoID, lang string) ([]session.Segment, error)
	// List returns the language codes with available tracks.
	List(ctx context.Context, videoID string) ([]string, error)
}

const timedtextBase = "https://video.google.com/timedtext"

// TimedtextFetcher fetches YouTube caption tracks over HTTP.
type TimedtextFetcher struct {
	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

func (f *TimedtextFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

type timedtextTrack struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

type timedtextList struct {
	XMLName xml.Name `xml:"transcript_list"`
	Tracks  []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

// Fetch downloads and parses one caption track.
func (f *TimedtextFetcher) Fetch(ctx context.Context, videoID, lang string) ([]session.Segment, error) {
	body, err := f.get(ctx, url.Values{"v": {videoID}, "lang": {lang}})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		// The endpoint answers 200 with an empty body for missing tracks.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, lang)
	}

	var track timedtextTrack
	if err := xml.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("parse caption track: %w", err)
	}
	if len(track.Texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, lang)
	}

	segments := make([]session.Segment, 0, len(track.Texts))
	for _, t := range track.Texts {
		segments = append(segments, session.Segment{Start: t.Start, Text: t.Text})
	}

	log.Debug().
		Str("video_id", videoID).
		Str("lang", lang).
		Int("segments", len(segments)).
		Msg("Caption track fetched")
	return segments, nil
}

// List returns the language codes of the available tracks.
func (f *TimedtextFetcher) List(ctx context.Context, videoID string) ([]string, error) {
	body, err := f.get(ctx, url.Values{"v": {videoID}, "type": {"list"}})
	if err != nil {
		return nil, err
	}

	var list timedtextList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse caption list: %w", err)
	}

	langs := make([]string, 0, len(list.Tracks))
	for _, t := range list.Tracks {
		langs = append(langs, t.LangCode)
	}
	return langs, nil
}

func (f *TimedtextFetcher) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, timedtextBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, ErrBlocked
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("caption request returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
