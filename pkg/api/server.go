package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/scribe/pkg/httpmw"
	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/perf"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/storage"
	"github.com/cuemby/scribe/pkg/types"
)

// Server is the demo snippet service. Every endpoint runs under the
// logging middleware, so it doubles as a live exercise of the whole
// pipeline.
type Server struct {
	engine *scribe.Engine
	store  storage.Store
	apiKey string

	httpSrv *http.Server
}

// NewServer creates the server. An empty apiKey disables write
// authentication.
func NewServer(engine *scribe.Engine, store storage.Store, apiKey string) *Server {
	return &Server{engine: engine, store: store, apiKey: apiKey}
}

// Handler builds the full route table wrapped in the middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/snippets", s.requireKey(s.createSnippet))
	mux.HandleFunc("GET /api/v1/snippets", s.listSnippets)
	mux.HandleFunc("GET /api/v1/snippets/{id}", s.getSnippet)
	mux.HandleFunc("DELETE /api/v1/snippets/{id}", s.requireKey(s.deleteSnippet))

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", perf.Handler())

	return httpmw.Middleware(s.engine)(mux)
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	apiLog := log.WithComponent("api")
	apiLog.Info().Str("addr", addr).Msg("server listening")

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() {
	if s.httpSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Fault("api", err, "shutdown")
	}
}

// requireKey gates mutating endpoints on the configured API key.
// Denials land in the security log.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.apiKey {
			s.engine.Security(r.Context(), types.LevelWarning, "api", "rejected request with bad api key", map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		s.engine.Security(r.Context(), types.LevelInfo, "api", "authenticated write", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		next(w, r)
	}
}

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

func (s *Server) createSnippet(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	snippet := &storage.Snippet{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		Author:    req.Author,
		CreatedAt: time.Now().UTC(),
	}

	err := scribe.Func(r.Context(), s.engine, "api.create_snippet", func(ctx context.Context) error {
		return s.store.CreateSnippet(ctx, snippet)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

func (s *Server) getSnippet(w http.ResponseWriter, r *http.Request) {
	snippet, err := s.store.GetSnippet(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no such snippet")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "store failed")
	default:
		writeJSON(w, http.StatusOK, snippet)
	}
}

func (s *Server) listSnippets(w http.ResponseWriter, r *http.Request) {
	var snippets []*storage.Snippet
	err := scribe.Func(r.Context(), s.engine, "api.list_snippets", func(ctx context.Context) error {
		var err error
		snippets, err = s.store.ListSnippets(ctx)
		return err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	if snippets == nil {
		snippets = []*storage.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

func (s *Server) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSnippet(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no such snippet")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "store failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
