// Package session owns the process-wide session store for the video
// pipeline. A session is a time-bounded container for one user's videos,
// transcripts, analyses and chat history; everything it owns is evicted
// together after 30 minutes of inactivity.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fpang/gemini-video-web/internal/apperr"
)

// Status tracks a video through acquisition.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// SourceUpload marks a VideoRecord that came from a direct file upload
// rather than a remote URL.
const SourceUpload = "upload"

// Metadata holds best-effort video metadata. Missing fields default to
// "Unknown" / 0 at acquisition time.
type Metadata struct {
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Duration  int64  `json:"duration"` // seconds
	ViewCount int64  `json:"view_count"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// VideoRecord describes one acquired video. Immutable once Status is
// StatusReady, except for metadata enrichment.
type VideoRecord struct {
	Filename  string    `json:"filename"` // unique within the session
	Source    string    `json:"source"`   // original URL, or SourceUpload
	Status    Status    `json:"status"`
	Metadata  Metadata  `json:"metadata"`
	Path      string    `json:"-"` // absolute path under the session directory
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript origin values.
const (
	OriginCaption   = "external-caption"
	OriginGenerated = "generated"
	OriginNone      = "none"
)

// Segment is one timed transcript line.
type Segment struct {
	Start float64 `json:"start"` // seconds from video start
	Text  string  `json:"text"`
}

// Transcript is the resolved transcript for one video. Never mutated after
// creation; a later explicit re-resolution replaces it wholesale.
type Transcript struct {
	Language      string    `json:"language"`
	Origin        string    `json:"origin"`
	Segments      []Segment `json:"segments,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"` // "blocked", "no-captions", "local-source"
}

// Available reports whether the transcript carries usable text.
func (t *Transcript) Available() bool {
	return t != nil && t.Origin != OriginNone
}

// FormattedText renders the segments as "[MM:SS] text" lines for prompt
// grounding.
func (t *Transcript) FormattedText() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range t.Segments {
		minutes := int(seg.Start) / 60
		seconds := int(seg.Start) % 60
		fmt.Fprintf(&sb, "[%02d:%02d] %s\n", minutes, seconds, strings.ReplaceAll(seg.Text, "\n", " "))
	}
	return sb.String()
}

// AnalysisResult is one cached structured analysis. Keyed in the session by
// (filename, mode, prompt hash for custom mode); the cache never expires
// before the session does.
type AnalysisResult struct {
	Filename  string                     `json:"filename"`
	Mode      string                     `json:"mode"`
	Payload   map[string]json.RawMessage `json:"payload"`
	CreatedAt time.Time                  `json:"created_at"`
}

// ChatMessage is one turn of the per-video conversation. Partial marks an
// assistant message persisted after the caller abandoned the stream.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Partial   bool      `json:"partial,omitempty"`
}

// Session is one user's in-progress state. All methods fail with
// apperr.ErrSessionExpired once the session has been evicted, so requests
// that raced the reaper surface an explicit expiry instead of operating on
// deleted files.
type Session struct {
	ID        string
	CreatedAt time.Time

	dir string
	now func() time.Time

	mu          sync.Mutex
	lastTouched time.Time
	evicted     bool
	videos      map[string]*VideoRecord
	transcripts map[string]*Transcript
	analyses    map[string]*AnalysisResult
	chats       map[string][]ChatMessage
	chatLocks   map[string]*sync.Mutex
}

func newSession(id, dir string, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:          id,
		CreatedAt:   t,
		dir:         dir,
		now:         now,
		lastTouched: t,
		videos:      make(map[string]*VideoRecord),
		transcripts: make(map[string]*Transcript),
		analyses:    make(map[string]*AnalysisResult),
		chats:       make(map[string][]ChatMessage),
		chatLocks:   make(map[string]*sync.Mutex),
	}
}

// Dir returns the session-scoped storage directory.
func (s *Session) Dir() string { return s.dir }

// Touch refreshes the inactivity timestamp. Last writer wins.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return
	}
	s.lastTouched = s.now()
}

// LastTouched returns the inactivity timestamp.
func (s *Session) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouched
}

func (s *Session) markEvicted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = true
}

// Expired reports whether the session has been evicted.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

func (s *Session) guard() error {
	if s.evicted {
		return apperr.ErrSessionExpired
	}
	return nil
}

// AddVideo registers an acquisition record. The record becomes visible to
// concurrent callers immediately, typically with StatusDownloading.
func (s *Session) AddVideo(rec *VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if _, exists := s.videos[rec.Filename]; exists {
		return apperr.InvalidInput("duplicate filename %q", rec.Filename)
	}
	s.videos[rec.Filename] = rec
	return nil
}

// Video returns a snapshot of the record for filename.
func (s *Session) Video(filename string) (VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return VideoRecord{}, err
	}
	rec, ok := s.videos[filename]
	if !ok {
		return VideoRecord{}, apperr.UnknownFilename(filename)
	}
	return *rec, nil
}

// Videos returns snapshots of all records, newest first.
func (s *Session) Videos() ([]VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]VideoRecord, 0, len(s.videos))
	for _, rec := range s.videos {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateVideo applies fn to the record for filename under the session lock.
func (s *Session) UpdateVideo(filename string, fn func(*VideoRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	rec, ok := s.videos[filename]
	if !ok {
		return apperr.UnknownFilename(filename)
	}
	fn(rec)
	return nil
}

// Transcript returns the cached transcript for filename, if any.
func (s *Session) Transcript(filename string) (*Transcript, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, false, err
	}
	t, ok := s.transcripts[filename]
	return t, ok, nil
}

// SetTranscript caches (or replaces, on explicit re-resolution) the
// transcript for filename. The filename must reference a known video.
func (s *Session) SetTranscript(filename string, t *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.videos[filename]; !ok {
		return apperr.UnknownFilename(filename)
	}
	s.transcripts[filename] = t
	return nil
}

// Analysis returns the cached result for the given cache key.
func (s *Session) Analysis(key string) (*AnalysisResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, false, err
	}
	res, ok := s.analyses[key]
	return res, ok, nil
}

// SetAnalysis caches a result under the given cache key.
func (s *Session) SetAnalysis(key string, res *AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.videos[res.Filename]; !ok {
		return apperr.UnknownFilename(res.Filename)
	}
	s.analyses[key] = res
	return nil
}

// AnalysesFor returns all cached results for filename, newest first. Chat
// grounding uses this ordering.
func (s *Session) AnalysesFor(filename string) ([]*AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	var out []*AnalysisResult
	for _, res := range s.analyses {
		if res.Filename == filename {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Analyses returns all cached results in the session.
func (s *Session) Analyses() ([]*AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]*AnalysisResult, 0, len(s.analyses))
	for _, res := range s.analyses {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Messages returns the conversation for filename in insertion order.
func (s *Session) Messages(filename string) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	msgs := s.chats[filename]
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendMessage appends one chat turn for filename.
func (s *Session) AppendMessage(filename string, msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.videos[filename]; !ok {
		return apperr.UnknownFilename(filename)
	}
	s.chats[filename] = append(s.chats[filename], msg)
	return nil
}

// ChatLock returns the per-filename mutex used to serialize overlapping chat
// questions so assistant messages commit in question order.
func (s *Session) ChatLock(filename string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chatLocks[filename]
	if !ok {
		l = &sync.Mutex{}
		s.chatLocks[filename] = l
	}
	return l
}
