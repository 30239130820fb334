// Package server exposes the generation pipeline and artifact history over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgealpha/artifact-agent/internal/config"
	"github.com/edgealpha/artifact-agent/internal/pipeline"
	"github.com/edgealpha/artifact-agent/internal/store"
)

const (
	maxRequestBytes = 1 << 20
	defaultListSize = 50
)

// Generator runs one generation request.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// ArtifactReader reads persisted artifacts, scoped to their owner.
type ArtifactReader interface {
	ListArtifacts(ctx context.Context, ownerID string, limit int) ([]store.ArtifactRecord, error)
	GetArtifact(ctx context.Context, ownerID string, id string) (*store.ArtifactRecord, error)
}

// TokenResolver maps a bearer token to the owner it authenticates.
type TokenResolver interface {
	ResolveAuthToken(token string) (string, bool, error)
}

type Options struct {
	Logger *slog.Logger
	// Addr is the listen address (host:port).
	Addr string

	Generator Generator
	Artifacts ArtifactReader
	// Tokens is required when Access.Mode is bearer_token.
	Tokens TokenResolver
	Access config.AccessPolicy

	Version string
}

type Server struct {
	log *slog.Logger

	addr    string
	version string

	gen       Generator
	artifacts ArtifactReader
	tokens    TokenResolver
	access    config.AccessPolicy

	handler http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, errors.New("missing Generator")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("missing Artifacts")
	}
	if err := opts.Access.Validate(); err != nil {
		return nil, fmt.Errorf("invalid access policy: %w", err)
	}
	if opts.Access.Mode == config.AccessBearerToken && opts.Tokens == nil {
		return nil, errors.New("missing Tokens for bearer_token access")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		log:       logger,
		addr:      strings.TrimSpace(opts.Addr),
		version:   strings.TrimSpace(opts.Version),
		gen:       opts.Generator,
		artifacts: opts.Artifacts,
		tokens:    opts.Tokens,
		access:    opts.Access,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/agents/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /api/artifacts/{id}", s.handleGetArtifact)
	s.handler = mux
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("nil server")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// In-flight generations keep running through persistence; give them time.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

type apiResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResp{OK: false, Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResp{OK: true, Data: map[string]string{"version": s.version}})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	owner, status, err := s.resolveOwner(r, req.OwnerID, s.access.AllowAnonymous)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	req.OwnerID = owner

	resp, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		status, msg := generateErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("generate failed", "agent_id", req.AgentID, "deliverable_type", req.DeliverableType, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, apiResp{OK: true, Data: resp})
}

func generateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrGenerationMalformed):
		return http.StatusBadGateway, pipeline.ErrGenerationMalformed.Error()
	case errors.Is(err, pipeline.ErrGenerationFailed):
		return http.StatusBadGateway, pipeline.ErrGenerationFailed.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation timed out"
	default:
		return http.StatusInternalServerError, "Failed to generate deliverable. Please try again."
	}
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	owner, status, err := s.resolveOwner(r, r.URL.Query().Get("owner_id"), false)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	limit := defaultListSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.artifacts.ListArtifacts(r.Context(), owner, limit)
	if err != nil {
		s.log.Error("list artifacts failed", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	if list == nil {
		list = []store.ArtifactRecord{}
	}
	writeJSON(w, http.StatusOK, apiResp{OK: true, Data: list})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	owner, status, err := s.resolveOwner(r, r.URL.Query().Get("owner_id"), false)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	rec, err := s.artifacts.GetArtifact(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.log.Error("get artifact failed", "owner_id", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load artifact")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResp{OK: true, Data: rec})
}
