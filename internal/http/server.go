package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bkisolation/pkg/bookie"
	"bkisolation/pkg/isolation"
	"bkisolation/pkg/placement"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = 8080
	defaultShutdownTimeout = time.Second * 5
	maxBodyBytes           = 1 << 20
)

type iPolicy interface {
	placement.Engine
	ExcludedBookies() bookie.Set
	Groups() *isolation.Groups
}

type iBookieLister interface {
	Bookies() []bookie.Address
}

// Server exposes the isolated placement policy over HTTP.
type Server struct {
	policy     iPolicy
	pool       iBookieLister
	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a new server instance. pool may be nil.
func NewServer(policy iPolicy, pool iBookieLister, port int) *Server {
	if port == 0 {
		port = defaultHTTPPort
	}
	p := strconv.Itoa(port)
	return &Server{
		policy: policy,
		pool:   pool,
		URL:    "http://localhost:" + p,
		addr:   ":" + p,
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/bookies", s.handleBookies)

	r.Route("/isolation", func(r chi.Router) {
		r.Get("/groups", s.handleGroups)
		r.Get("/excluded", s.handleExcluded)
	})

	r.Route("/ensemble", func(r chi.Router) {
		r.Post("/", s.handleNewEnsemble)
		r.Post("/replace", s.handleReplaceBookie)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleBookies(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("No bookie pool configured"))
		return
	}
	s.writeJSON(w, http.StatusOK, NewBookiesResponse(s.pool.Bookies()))
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	g := s.policy.Groups()
	s.writeJSON(w, http.StatusOK, NewGroupsResponse(g.Enabled(), g.Names()))
}

func (s *Server) handleExcluded(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewBookiesResponse(s.policy.ExcludedBookies().Sorted()))
}

// ensembleRequest is the body of both ensemble endpoints.
type ensembleRequest struct {
	EnsembleSize int               `json:"ensemble_size"`
	WriteQuorum  int               `json:"write_quorum"`
	AckQuorum    int               `json:"ack_quorum"`
	Metadata     map[string][]byte `json:"metadata,omitempty"`
	Excluded     []bookie.Address  `json:"excluded,omitempty"`
	Current      []bookie.Address  `json:"current,omitempty"`
	Replace      *bookie.Address   `json:"replace,omitempty"`
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (ensembleRequest, bool) {
	var req ensembleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return req, false
	}
	return req, true
}

func (s *Server) writePlacementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, placement.ErrNotEnoughBookies):
		s.writeJSON(w, http.StatusConflict, NewErrorResponse(err.Error()))
	case errors.Is(err, placement.ErrInvalidQuorum):
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
	}
}

func (s *Server) handleNewEnsemble(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	var excluded bookie.Set
	if len(req.Excluded) > 0 {
		excluded = bookie.NewSet(req.Excluded...)
	}

	ens, err := s.policy.NewEnsemble(req.EnsembleSize, req.WriteQuorum, req.AckQuorum, req.Metadata, excluded)
	if err != nil {
		s.writePlacementError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewBookiesResponse(ens))
}

func (s *Server) handleReplaceBookie(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Replace == nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing replace"))
		return
	}

	var excluded bookie.Set
	if len(req.Excluded) > 0 {
		excluded = bookie.NewSet(req.Excluded...)
	}

	addr, err := s.policy.ReplaceBookie(req.EnsembleSize, req.WriteQuorum, req.AckQuorum, req.Metadata,
		req.Current, *req.Replace, excluded)
	if err != nil {
		s.writePlacementError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewBookieResponse(addr))
}
