// Package server exposes the voice service REST API: agent CRUD backed by
// the record store, voice and synthesis operations proxied to the provider,
// and audio file retrieval.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/book-expert/logger"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/text"
)

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config holds the HTTP listener and rate limit settings.
type Config struct {
	Host              string
	Port              int
	RequestsPerSecond float64
	Burst             int
}

// QueueReporter exposes the dispatcher occupancy snapshot.
type QueueReporter interface {
	Status() core.QueueStatus
}

// Server wires the REST API to its collaborators. The events publisher may
// be nil when event publishing is disabled.
type Server struct {
	cfg       Config
	provider  core.SynthesisProvider
	agents    core.AgentStore
	audio     core.AudioStore
	events    core.EventPublisher
	queue     QueueReporter
	limiters  *clientLimiters
	sanitizer *text.Sanitizer
	log       *logger.Logger
}

// New creates the API server.
func New(
	cfg Config,
	provider core.SynthesisProvider,
	agents core.AgentStore,
	audioStore core.AudioStore,
	publisher core.EventPublisher,
	queue QueueReporter,
	log *logger.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		provider:  provider,
		agents:    agents,
		audio:     audioStore,
		events:    publisher,
		queue:     queue,
		limiters:  newClientLimiters(cfg.RequestsPerSecond, cfg.Burst),
		sanitizer: text.NewSanitizer(),
		log:       log,
	}
}

// Handler builds the routing table with logging and rate limiting applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/queue", s.handleQueueStatus)

	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)

	mux.HandleFunc("GET /api/voices", s.handleListVoices)
	mux.HandleFunc("POST /api/voices/clone", s.handleCloneVoice)
	mux.HandleFunc("DELETE /api/voices/{id}", s.handleDeleteVoice)

	mux.HandleFunc("GET /api/user", s.handleUserInfo)
	mux.HandleFunc("POST /api/synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /api/audio", s.handleListAudio)
	mux.HandleFunc("GET /api/audio/{name}", s.handleGetAudio)

	return s.withLogging(s.withRateLimit(mux))
}

// ListenAndServe runs the HTTP server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	if s.log != nil {
		s.log.System("Voice service listening on %s", httpServer.Addr)
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	return nil
}
