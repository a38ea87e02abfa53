package transcript

import (
	"context"
	"testing"

	"github.com/fpang/gemini-video-web/internal/session"
)

// fakeCaptions scripts per-language caption outcomes.
type fakeCaptions struct {
	tracks  map[string][]session.Segment // lang -> segments
	errs    map[string]error             // lang -> fetch error
	listed  []string
	listErr error

	fetchOrder []string
}

func (f *fakeCaptions) Fetch(ctx context.Context, videoID, lang string) ([]session.Segment, error) {
	f.fetchOrder = append(f.fetchOrder, lang)
	if err, ok := f.errs[lang]; ok {
		return nil, err
	}
	if segs, ok := f.tracks[lang]; ok {
		return segs, nil
	}
	return nil, ErrNotFound
}

func (f *fakeCaptions) List(ctx context.Context, videoID string) ([]string, error) {
	return f.listed, f.listErr
}

func newResolverSession(t *testing.T, source string) *session.Session {
	t.Helper()
	store := session.NewStore(session.Config{Root: t.TempDir()})
	s, err := store.Get("test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.AddVideo(&session.VideoRecord{
		Filename: "a.mp4",
		Source:   source,
		Status:   session.StatusReady,
	}); err != nil {
		t.Fatalf("AddVideo: %v", err)
	}
	return s
}

const ytURL = "https://www.youtube.com/watch?v=abc123"

func TestResolveFirstLanguageWins(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		tracks: map[string][]session.Segment{
			"pt": {{Start: 0, Text: "olá"}},
			"en": {{Start: 0, Text: "hello"}},
		},
	}
	r := NewResolver(captions)

	tr, cached, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cached {
		t.Error("first resolution reported as cached")
	}
	if tr.Language != "pt" || tr.Origin != session.OriginCaption {
		t.Errorf("got lang=%q origin=%q, want pt caption", tr.Language, tr.Origin)
	}
	if len(captions.fetchOrder) != 1 {
		t.Errorf("fetch attempts = %v, want only pt", captions.fetchOrder)
	}
}

func TestResolveFallsThroughFailures(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		errs:   map[string]error{"pt": ErrBlocked},
		tracks: map[string][]session.Segment{"en": {{Start: 1, Text: "hello"}}},
	}
	r := NewResolver(captions)

	tr, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want en despite pt being blocked", tr.Language)
	}
	want := []string{"pt", "en"}
	if len(captions.fetchOrder) != len(want) {
		t.Fatalf("fetch attempts = %v, want %v", captions.fetchOrder, want)
	}
	for i, lang := range want {
		if captions.fetchOrder[i] != lang {
			t.Errorf("attempt %d = %q, want %q", i, captions.fetchOrder[i], lang)
		}
	}
}

func TestResolveUsesListedLanguageAsLastResort(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		tracks: map[string][]session.Segment{"de": {{Start: 0, Text: "hallo"}}},
		listed: []string{"de"},
	}
	r := NewResolver(captions)

	tr, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.Language != "de" {
		t.Errorf("Language = %q, want de from the track list", tr.Language)
	}
}

func TestResolveReportsBlocked(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		errs: map[string]error{"pt": ErrBlocked, "en": ErrBlocked, "es": ErrBlocked},
	}
	r := NewResolver(captions)

	tr, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.Available() {
		t.Fatal("blocked resolution reported available")
	}
	if tr.FailureReason != "blocked" {
		t.Errorf("FailureReason = %q, want blocked", tr.FailureReason)
	}
}

func TestResolveNoCaptions(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	r := NewResolver(&fakeCaptions{})

	tr, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tr.Available() || tr.FailureReason != "no-captions" {
		t.Errorf("got origin=%q reason=%q, want none/no-captions", tr.Origin, tr.FailureReason)
	}
}

func TestResolveLocalSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"upload", session.SourceUpload},
		{"non-youtube URL", "https://example.com/video.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newResolverSession(t, tt.source)
			captions := &fakeCaptions{}
			r := NewResolver(captions)

			tr, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if tr.FailureReason != "local-source" {
				t.Errorf("FailureReason = %q, want local-source", tr.FailureReason)
			}
			if len(captions.fetchOrder) != 0 {
				t.Errorf("local source attempted caption fetches: %v", captions.fetchOrder)
			}
		})
	}
}

func TestResolveCachesResult(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		tracks: map[string][]session.Segment{"pt": {{Start: 0, Text: "olá"}}},
	}
	r := NewResolver(captions)

	first, _, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, cached, err := r.Resolve(context.Background(), sess, "a.mp4", false)
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if !cached {
		t.Error("second resolution not served from cache")
	}
	if first != second {
		t.Error("cached resolution returned a different transcript")
	}
	if len(captions.fetchOrder) != 1 {
		t.Errorf("fetch attempts = %d, want 1", len(captions.fetchOrder))
	}
}

func TestResolveForceBypassesCache(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	captions := &fakeCaptions{
		tracks: map[string][]session.Segment{"pt": {{Start: 0, Text: "olá"}}},
	}
	r := NewResolver(captions)

	r.Resolve(context.Background(), sess, "a.mp4", false)
	_, cached, err := r.Resolve(context.Background(), sess, "a.mp4", true)
	if err != nil {
		t.Fatalf("Resolve (force): %v", err)
	}
	if cached {
		t.Error("forced resolution served from cache")
	}
	if len(captions.fetchOrder) != 2 {
		t.Errorf("fetch attempts = %d, want 2", len(captions.fetchOrder))
	}
}

func TestResolveUnknownFilename(t *testing.T) {
	sess := newResolverSession(t, ytURL)
	r := NewResolver(&fakeCaptions{})

	if _, _, err := r.Resolve(context.Background(), sess, "ghost.mp4", false); err == nil {
		t.Fatal("Resolve for unknown filename succeeded")
	}
}
