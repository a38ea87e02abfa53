package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/fpang/gemini-video-web/internal/analysis"
	"github.com/fpang/gemini-video-web/internal/chat"
	"github.com/fpang/gemini-video-web/internal/gemini"
	"github.com/fpang/gemini-video-web/internal/media"
	"github.com/fpang/gemini-video-web/internal/session"
	"github.com/fpang/gemini-video-web/internal/transcript"
)

// The export handler writes Zstandard entries; register the matching
// decompressor so tests can read them back.
func init() {
	zip.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(r)
		}
		return zr.IOReadCloser()
	})
}

// testFetcher pretends every URL downloads instantly.
type testFetcher struct{}

func (testFetcher) Probe(ctx context.Context, url string) (*media.ProbeResult, error) {
	return &media.ProbeResult{Title: "Probe Title", Uploader: "Probe Uploader", Duration: 10}, nil
}

func (testFetcher) Fetch(ctx context.Context, url, dest string) error {
	return os.WriteFile(dest, []byte("video bytes"), 0o644)
}

type stubCaptions struct{}

func (stubCaptions) Fetch(ctx context.Context, videoID, lang string) ([]session.Segment, error) {
	return nil, transcript.ErrNotFound
}

func (stubCaptions) List(ctx context.Context, videoID string) ([]string, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	gen := gemini.NewMock()
	resolver := transcript.NewResolver(stubCaptions{})
	return &server{
		store:       session.NewStore(session.Config{Root: t.TempDir()}),
		acquirer:    media.NewAcquirer(testFetcher{}),
		transcripts: resolver,
		dispatcher:  analysis.NewDispatcher(gen, resolver),
		chat:        chat.NewManager(gen),
	}
}

// do issues a request against the mux, carrying the session cookie between
// calls like a browser would.
type client struct {
	t      *testing.T
	mux    http.Handler
	cookie *http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.mux.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *client) postJSON(path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) upload(filename, content string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("video", filename)
	if err != nil {
		c.t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(fw, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/video/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAnalysisModesEndpoint(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.do(httptest.NewRequest(http.MethodGet, "/api/analysis-modes", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var body struct {
		Modes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"modes"`
	}
	decodeBody(t, rr, &body)
	if len(body.Modes) != 7 {
		t.Fatalf("got %d modes, want 7", len(body.Modes))
	}
	if body.Modes[0].ID != "summary" || body.Modes[len(body.Modes)-1].ID != "custom" {
		t.Errorf("unexpected mode ordering: first=%s last=%s", body.Modes[0].ID, body.Modes[len(body.Modes)-1].ID)
	}
}

func TestUploadAnalyzeFlow(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.upload("demo.mp4", "fake video content")
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body)
	}
	var uploadBody struct {
		Video struct {
			Filename string `json:"filename"`
			Status   string `json:"status"`
		} `json:"video"`
	}
	decodeBody(t, rr, &uploadBody)
	if uploadBody.Video.Status != "ready" {
		t.Fatalf("uploaded video status = %q", uploadBody.Video.Status)
	}
	filename := uploadBody.Video.Filename

	rr = c.do(httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	var listBody struct {
		Videos []json.RawMessage `json:"videos"`
	}
	decodeBody(t, rr, &listBody)
	if len(listBody.Videos) != 1 {
		t.Fatalf("got %d videos, want 1", len(listBody.Videos))
	}

	rr = c.postJSON("/api/analyze", map[string]string{"filename": filename, "mode": "summary"})
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rr.Code, rr.Body)
	}
	var analyzeBody struct {
		Cached   bool `json:"cached"`
		Analysis struct {
			Mode    string                     `json:"mode"`
			Payload map[string]json.RawMessage `json:"payload"`
		} `json:"analysis"`
	}
	decodeBody(t, rr, &analyzeBody)
	if analyzeBody.Cached {
		t.Error("first analysis reported as cached")
	}
	if _, ok := analyzeBody.Analysis.Payload["summary"]; !ok {
		t.Error("analysis payload missing summary field")
	}

	rr = c.postJSON("/api/analyze", map[string]string{"filename": filename, "mode": "summary"})
	decodeBody(t, rr, &analyzeBody)
	if !analyzeBody.Cached {
		t.Error("repeat analysis not served from cache")
	}
}

func TestUploadRejectsBadExtension(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.upload("nasty.exe", "MZ...")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAnalyzeUnknownFilename(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.postJSON("/api/analyze", map[string]string{"filename": "ghost.mp4", "mode": "summary"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rr.Code, rr.Body)
	}
	var body struct {
		Kind   string `json:"kind"`
		Reason string `json:"reason"`
	}
	decodeBody(t, rr, &body)
	if body.Reason != "unknown-filename" {
		t.Errorf("reason = %q, want unknown-filename", body.Reason)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.postJSON("/api/video/download", map[string]string{"url": "https://www.youtube.com/watch?v=abc"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var body struct {
		Video struct {
			Metadata struct {
				Title string `json:"title"`
			} `json:"metadata"`
			Status string `json:"status"`
		} `json:"video"`
	}
	decodeBody(t, rr, &body)
	if body.Video.Status != "ready" {
		t.Errorf("status = %q, want ready", body.Video.Status)
	}
	if body.Video.Metadata.Title != "Probe Title" {
		t.Errorf("title = %q, want probe metadata", body.Video.Metadata.Title)
	}
}

func TestDownloadRejectsBadURL(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.postJSON("/api/video/download", map[string]string{"url": "ftp://bad"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var body struct {
		Kind string `json:"kind"`
	}
	decodeBody(t, rr, &body)
	if body.Kind != "invalid_input" {
		t.Errorf("kind = %q, want invalid_input", body.Kind)
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.upload("demo.mp4", "fake video content")
	var uploadBody struct {
		Video struct {
			Filename string `json:"filename"`
		} `json:"video"`
	}
	decodeBody(t, rr, &uploadBody)
	filename := uploadBody.Video.Filename

	// Chat before any analysis fails with a structured SSE error.
	rr = c.do(httptest.NewRequest(http.MethodGet,
		"/api/chat/stream?filename="+filename+"&question=hi", nil))
	if !strings.Contains(rr.Body.String(), "event: error") {
		t.Fatalf("expected error event, got: %s", rr.Body)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("error event missing kind: %s", rr.Body)
	}

	c.postJSON("/api/analyze", map[string]string{"filename": filename, "mode": "summary"})

	rr = c.do(httptest.NewRequest(http.MethodGet,
		"/api/chat/stream?filename="+filename+"&question=what+happens", nil))
	if got := rr.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}
	body := rr.Body.String()
	for _, event := range []string{"event: start", "event: chunk", "event: end"} {
		if !strings.Contains(body, event) {
			t.Errorf("stream missing %q:\n%s", event, body)
		}
	}

	rr = c.do(httptest.NewRequest(http.MethodGet, "/api/chat/history?filename="+filename, nil))
	var histBody struct {
		Messages []session.ChatMessage `json:"messages"`
	}
	decodeBody(t, rr, &histBody)
	if len(histBody.Messages) != 2 {
		t.Errorf("history has %d messages, want 2", len(histBody.Messages))
	}
}

func TestStreamEndpointServesBytes(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.upload("demo.mp4", "fake video content")
	var uploadBody struct {
		Video struct {
			Filename string `json:"filename"`
		} `json:"video"`
	}
	decodeBody(t, rr, &uploadBody)

	rr = c.do(httptest.NewRequest(http.MethodGet, "/api/video/stream/"+uploadBody.Video.Filename, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != "fake video content" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestCleanupEvictsAndIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, mux: srv.routes()}

	c.upload("demo.mp4", "fake video content")
	if srv.store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", srv.store.Len())
	}

	for i := 0; i < 2; i++ {
		rr := c.do(httptest.NewRequest(http.MethodPost, "/api/cleanup", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("cleanup %d status = %d", i, rr.Code)
		}
	}
	if srv.store.Len() != 0 {
		t.Errorf("Len() = %d after cleanup, want 0", srv.store.Len())
	}
}

func TestExportEmptySession(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	rr := c.do(httptest.NewRequest(http.MethodGet, "/api/session/export", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestExportContainsManifestAndVideo(t *testing.T) {
	c := &client{t: t, mux: newTestServer(t).routes()}

	c.upload("demo.mp4", "fake video content")

	rr := c.do(httptest.NewRequest(http.MethodGet, "/api/session/export", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("Content-Type = %q", got)
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 {
		t.Fatalf("zip entries = %v, want manifest + one video", names)
	}

	mf, err := zr.Open("manifest.json")
	if err != nil {
		t.Fatalf("manifest missing: %v (entries: %v)", err, names)
	}
	data, err := io.ReadAll(mf)
	mf.Close()
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest struct {
		Videos []struct {
			Filename string `json:"filename"`
		} `json:"videos"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if len(manifest.Videos) != 1 {
		t.Errorf("manifest lists %d videos, want 1", len(manifest.Videos))
	}
}
