package media

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/fpang/gemini-video-web/internal/apperr"
)

// allowedExtensions is the upload allow-list. Anything else is rejected
// before a single byte is written.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// MaxVideoBytes caps acquired videos at 500 MB.
const MaxVideoBytes int64 = 500 * 1024 * 1024

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return apperr.InvalidInput("invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.InvalidInput("URL must use http or https")
	}
	if u.Host == "" {
		return apperr.InvalidInput("URL has no host")
	}
	return nil
}

// ValidateExtension checks an uploaded filename against the allow-list and
// returns its lowercase extension (with leading dot).
func ValidateExtension(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", apperr.InvalidInput("unsupported file type %q (allowed: mp4, avi, mov, mkv, webm)", ext)
	}
	return ext, nil
}

// ExtractYouTubeID pulls the video id out of the usual YouTube URL shapes:
// watch?v=, /embed/, /v/, /shorts/ and youtu.be short links. Returns false
// for anything else, which the transcript resolver treats as a captionless
// source.
func ExtractYouTubeID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")

	if host == "youtube.com" || host == "m.youtube.com" {
		if v := u.Query().Get("v"); v != "" {
			return v, true
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id := strings.TrimPrefix(u.Path, prefix)
				if i := strings.IndexByte(id, '/'); i >= 0 {
					id = id[:i]
				}
				if id != "" {
					return id, true
				}
			}
		}
		return "", false
	}

	if host == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		if id != "" {
			return id, true
		}
	}

	return "", false
}
