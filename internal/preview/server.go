package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"reframe/internal/logging"
	"reframe/internal/services"
)

// Server exposes local files for byte-range playback. One instance is owned
// by the application's composition root; Start is guarded so concurrent
// first use results in exactly one listener.
type Server struct {
	bind   string
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	started  bool
}

// NewServer configures a preview server bound to the given address. Nothing
// listens until Start or EnsureStarted is called.
func NewServer(bind string, logger *slog.Logger) *Server {
	return &Server{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "preview"),
	}
}

// Start binds the listener and begins serving. Safe to call more than once;
// later calls are no-ops. The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("preview listen: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleFile)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.started = true

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("preview server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// EnsureStarted lazily starts the server on first preview use.
func (s *Server) EnsureStarted(ctx context.Context) error {
	return s.Start(ctx)
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down; part of application shutdown, not request
// handling.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// FileURL renders the preview URL for an absolute local path.
func (s *Server) FileURL(path string) string {
	addr := s.Addr()
	if addr == "" {
		addr = s.bind
	}
	return "http://" + addr + "/" + url.PathEscape(path)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := resolvePath(r.URL.EscapedPath())
	if err != nil {
		s.logger.Debug("preview path rejected", logging.String("path", r.URL.Path), logging.Error(err))
		status := http.StatusNotFound
		if errors.Is(err, services.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn("preview open failed", logging.String("path", path), logging.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	span, partial := parseRange(r.Header.Get("Range"), size)
	if !partial {
		span = byteRange{start: 0, end: size - 1}
		if size == 0 {
			span = byteRange{start: 0, end: -1}
		}
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(span.length(), 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", span.start, span.end, size))
		w.WriteHeader(http.StatusPartialContent)
	}

	if r.Method == http.MethodHead || size == 0 {
		return
	}

	reader := io.NewSectionReader(file, span.start, span.length())
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are gone; closing the connection is all that is left.
		s.logger.Debug("preview stream aborted", logging.String("path", path), logging.Error(err))
	}
}
