// Command video-web runs a local web server for session-scoped video
// intelligence: download or upload a video, resolve its transcript, run
// structured Gemini analyses and chat about the content, with everything
// evicted when the session goes idle.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-video-web/internal/analysis"
	"github.com/fpang/gemini-video-web/internal/auth"
	"github.com/fpang/gemini-video-web/internal/chat"
	"github.com/fpang/gemini-video-web/internal/gemini"
	"github.com/fpang/gemini-video-web/internal/logging"
	"github.com/fpang/gemini-video-web/internal/media"
	"github.com/fpang/gemini-video-web/internal/session"
	"github.com/fpang/gemini-video-web/internal/transcript"
)

// CLI flags
var (
	portFlag         int
	modelFlag        string
	downloadsDirFlag string
	mockFlag         bool
)

var rootCmd = &cobra.Command{
	Use:   "video-web",
	Short: "Web server for AI video analysis and chat",
	Long: `Video Web starts a local web server for analyzing videos with Gemini.
Download videos by URL or upload files, run structured analyses, and chat
about the content. Each browser session keeps its own videos and results,
cleaned up automatically after 30 minutes of inactivity.

Examples:
  video-web
  video-web --port 9090
  video-web --model gemini-2.5-pro
  video-web --mock`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gemini.DefaultModelName, "Gemini model to use")
	rootCmd.Flags().StringVar(&downloadsDirFlag, "downloads-dir", "downloads", "Root directory for session storage")
	rootCmd.Flags().BoolVar(&mockFlag, "mock", false, "Use the mock generator instead of the Gemini API")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// server holds the wired capabilities behind the HTTP handlers.
type server struct {
	store       *session.Store
	acquirer    *media.Acquirer
	transcripts *transcript.Resolver
	dispatcher  *analysis.Dispatcher
	chat        *chat.Manager
}

// session resolves the caller's session from the cookie, creating both the
// cookie and the session on first contact.
func (s *server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	return s.store.Get(sessionID(w, r))
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/video/download", s.handleDownload)
	mux.HandleFunc("POST /api/video/upload", s.handleUpload)
	mux.HandleFunc("POST /api/video/info", s.handleVideoInfo)
	mux.HandleFunc("GET /api/videos", s.handleListVideos)
	mux.HandleFunc("GET /api/video/stream/{filename}", s.handleStream)
	mux.HandleFunc("POST /api/transcript", s.handleTranscript)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/analysis-modes", s.handleAnalysisModes)
	mux.HandleFunc("GET /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/chat/history", s.handleChatHistory)
	mux.HandleFunc("POST /api/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /api/session/export", s.handleExport)
	return mux
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	gen, err := buildGenerator(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	fetcher := &media.YtdlpFetcher{}
	if err := fetcher.CheckAvailable(); err != nil {
		log.Warn().Err(err).Msg("Download tool unavailable; only uploads will work")
	}

	if err := os.MkdirAll(downloadsDirFlag, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", downloadsDirFlag).Msg("Failed to create downloads directory")
	}
	store := session.NewStore(session.Config{Root: downloadsDirFlag})

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go store.Run(reaperCtx)

	resolver := transcript.NewResolver(&transcript.TimedtextFetcher{})
	srv := &server{
		store:       store,
		acquirer:    media.NewAcquirer(fetcher),
		transcripts: resolver,
		dispatcher:  analysis.NewDispatcher(gen, resolver),
		chat:        chat.NewManager(gen),
	}

	handler := withLogging(withCORS(srv.routes()))

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: downloads, uploads and SSE streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		stopReaper()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Str("model", modelFlag).Msg("Starting web server")
	fmt.Printf("\n  Video Web UI: http://localhost:%d\n\n", portFlag)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// buildGenerator selects the mock or the real Gemini client once at startup.
func buildGenerator(ctx context.Context) (gemini.Generator, error) {
	if auth.UseMock(mockFlag) {
		return gemini.NewMock(), nil
	}
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		return nil, err
	}
	return gemini.NewClient(ctx, apiKey, modelFlag)
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins; this is a local tool.
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
