// Package media acquires videos into a session's storage directory, either
// by driving the external download tool or by accepting a direct upload.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-web/internal/apperr"
	"github.com/fpang/gemini-video-web/internal/session"
)

// Acquirer produces ready VideoRecords. It blocks the caller until the
// transfer completes or fails; no partial record is ever marked ready.
type Acquirer struct {
	fetcher  Fetcher
	maxBytes int64
	now      func() time.Time
}

// NewAcquirer wires the download capability.
func NewAcquirer(f Fetcher) *Acquirer {
	return &Acquirer{fetcher: f, maxBytes: MaxVideoBytes, now: time.Now}
}

// Acquire downloads the video at url into the session directory. The record
// is registered with StatusDownloading before the transfer starts so
// concurrent callers in the same session can see it (and operate on other
// filenames meanwhile). One failed download is retried automatically once;
// after that the error surfaces for a manual retry decision.
func (a *Acquirer) Acquire(ctx context.Context, sess *session.Session, url string) (session.VideoRecord, error) {
	if err := ValidateURL(url); err != nil {
		return session.VideoRecord{}, err
	}

	meta := session.Metadata{Title: "Unknown", Uploader: "Unknown"}
	if probe, err := a.fetcher.Probe(ctx, url); err != nil {
		// Metadata is best-effort; the download still proceeds.
		log.Warn().Err(err).Str("url", url).Msg("Metadata probe failed")
	} else {
		meta = probeMetadata(probe)
	}

	filename := uuid.NewString() + ".mp4"
	rec := &session.VideoRecord{
		Filename:  filename,
		Source:    url,
		Status:    session.StatusDownloading,
		Metadata:  meta,
		Path:      filepath.Join(sess.Dir(), filename),
		CreatedAt: a.now(),
	}
	if err := sess.AddVideo(rec); err != nil {
		return session.VideoRecord{}, err
	}

	if err := a.fetchWithRetry(ctx, url, rec.Path); err != nil {
		a.markFailed(sess, filename, rec.Path)
		return session.VideoRecord{}, apperr.New(apperr.KindAcquisition, classifyToolFailure(err), err)
	}

	info, err := os.Stat(rec.Path)
	if err != nil {
		a.markFailed(sess, filename, rec.Path)
		return session.VideoRecord{}, apperr.New(apperr.KindAcquisition, "download-failed",
			fmt.Errorf("downloaded file missing: %w", err))
	}
	if info.Size() > a.maxBytes {
		a.markFailed(sess, filename, rec.Path)
		return session.VideoRecord{}, apperr.New(apperr.KindAcquisition, "oversize",
			fmt.Errorf("video is %d bytes, limit is %d", info.Size(), a.maxBytes))
	}

	if err := sess.UpdateVideo(filename, func(r *session.VideoRecord) {
		r.Status = session.StatusReady
		r.Size = info.Size()
	}); err != nil {
		return session.VideoRecord{}, err
	}

	log.Info().
		Str("session", sess.ID).
		Str("filename", filename).
		Str("title", meta.Title).
		Int64("bytes", info.Size()).
		Msg("Video acquired")

	return sess.Video(filename)
}

// AcquireUpload stores an uploaded file in the session directory. The
// extension is validated against the allow-list before any byte is written.
func (a *Acquirer) AcquireUpload(ctx context.Context, sess *session.Session, originalName string, r io.Reader) (session.VideoRecord, error) {
	ext, err := ValidateExtension(originalName)
	if err != nil {
		return session.VideoRecord{}, err
	}

	filename := uuid.NewString() + ext
	title := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if title == "" {
		title = "Unknown"
	}
	rec := &session.VideoRecord{
		Filename:  filename,
		Source:    session.SourceUpload,
		Status:    session.StatusDownloading,
		Metadata:  session.Metadata{Title: title, Uploader: "Unknown"},
		Path:      filepath.Join(sess.Dir(), filename),
		CreatedAt: a.now(),
	}
	if err := sess.AddVideo(rec); err != nil {
		return session.VideoRecord{}, err
	}

	size, err := a.writeUpload(rec.Path, r)
	if err != nil {
		a.markFailed(sess, filename, rec.Path)
		if apperr.Is(err, apperr.KindAcquisition) {
			return session.VideoRecord{}, err
		}
		return session.VideoRecord{}, apperr.New(apperr.KindAcquisition, "upload-failed", err)
	}

	if err := sess.UpdateVideo(filename, func(r *session.VideoRecord) {
		r.Status = session.StatusReady
		r.Size = size
	}); err != nil {
		return session.VideoRecord{}, err
	}

	log.Info().
		Str("session", sess.ID).
		Str("filename", filename).
		Int64("bytes", size).
		Msg("Upload stored")

	return sess.Video(filename)
}

// ProbeInfo returns metadata for url without downloading it.
func (a *Acquirer) ProbeInfo(ctx context.Context, url string) (*ProbeResult, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	probe, err := a.fetcher.Probe(ctx, url)
	if err != nil {
		return nil, apperr.New(apperr.KindAcquisition, classifyToolFailure(err), err)
	}
	return probe, nil
}

func (a *Acquirer) fetchWithRetry(ctx context.Context, url, dest string) error {
	err := a.fetcher.Fetch(ctx, url, dest)
	if err == nil || ctx.Err() != nil {
		return err
	}
	log.Warn().Err(err).Str("url", url).Msg("Download failed, retrying once")
	os.Remove(dest)
	return a.fetcher.Fetch(ctx, url, dest)
}

// writeUpload copies the upload to dest, rejecting it once it exceeds the
// size cap instead of buffering an arbitrarily large body.
func (a *Acquirer) writeUpload(dest string, r io.Reader) (int64, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, a.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if n > a.maxBytes {
		return 0, apperr.New(apperr.KindAcquisition, "oversize",
			fmt.Errorf("upload exceeds %d byte limit", a.maxBytes))
	}
	return n, nil
}

func (a *Acquirer) markFailed(sess *session.Session, filename, path string) {
	os.Remove(path)
	_ = sess.UpdateVideo(filename, func(r *session.VideoRecord) {
		r.Status = session.StatusFailed
	})
}

func probeMetadata(p *ProbeResult) session.Metadata {
	meta := session.Metadata{
		Title:     p.Title,
		Uploader:  p.Uploader,
		Duration:  int64(p.Duration),
		ViewCount: p.ViewCount,
		Thumbnail: p.Thumbnail,
	}
	if meta.Title == "" {
		meta.Title = "Unknown"
	}
	if meta.Uploader == "" {
		meta.Uploader = "Unknown"
	}
	return meta
}
