// Package server exposes entries, reports and calculation metadata over a
// JSON HTTP API routed with chi.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rshade/greenledger/internal/compliance"
	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/esg"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/ingest"
	"github.com/rshade/greenledger/internal/logging"
	"github.com/rshade/greenledger/internal/metadata"
	"github.com/rshade/greenledger/internal/sector"
	"github.com/rshade/greenledger/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	store  store.Store
	engine *engine.Engine
	now    func() time.Time
}

// New returns a Server reading and writing st and scoring with eng.
func New(st store.Store, eng *engine.Engine) *Server {
	return &Server{store: st, engine: eng, now: time.Now}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.listEntries)
			r.Post("/", s.createEntries)
			r.Post("/ocr", s.importOCR)
			r.Get("/{id}", s.getEntry)
			r.Delete("/{id}", s.deleteEntry)
			r.Post("/{id}/validate", s.validateEntry)
		})
		r.Get("/report", s.report)
		r.Get("/compliance", s.compliance)
		r.Route("/metadata", func(r chi.Router) {
			r.Get("/", s.listSubjects)
			r.Post("/", s.recordMetadata)
			r.Get("/{subject}", s.metadataHistory)
			r.Post("/{subject}/revisions", s.reviseMetadata)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().
		Str("component", "server").
		Str("addr", cfg.Addr).
		Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Str("component", "server").Msg("stopped")
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	var filter store.Filter
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope, err := greenops.ParseScope(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.Scope = scope
	}
	filter.Status = greenops.EntryStatus(r.URL.Query().Get("status"))

	entries, err := s.store.Entries().List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// createEntries accepts one entry object or an array of entries; an array is
// stored atomically.
func (s *Server) createEntries(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, r, err)
		return
	}
	var entries []greenops.ActivityEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		var single greenops.ActivityEntry
		if err = json.Unmarshal(raw, &single); err != nil {
			writeError(w, r, badRequest(err))
			return
		}
		entries = []greenops.ActivityEntry{single}
	}
	for i, e := range entries {
		canonical, err := e.Canonical()
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries[i] = canonical
	}

	added, err := s.store.Entries().Add(r.Context(), entries...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": added})
}

func (s *Server) importOCR(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := ingest.OCROptions{DefaultScope: greenops.Scope3}
	if raw := r.URL.Query().Get("min_confidence"); raw != "" {
		if opts.MinConfidence, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, r, badRequest(fmt.Errorf("min_confidence: %w", err)))
			return
		}
	}
	res, err := ingest.ParseOCRResult(r.Context(), body, opts)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if len(res.Entries) > 0 {
		if res.Entries, err = s.store.Entries().Add(r.Context(), res.Entries...); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Entries().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Entries().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateEntry promotes a draft. An optional JSON body carries corrected
// fields, applied before validation.
func (s *Server) validateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := s.store.Entries().Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.ContentLength > 0 {
		id := e.ID
		if err = decodeBody(r, &e); err != nil {
			writeError(w, r, err)
			return
		}
		e.ID = id
	}
	e.Status = greenops.StatusValidated
	updated, err := s.store.Entries().Update(ctx, e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	params, err := reportParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.store.Entries().List(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.Compute(r.Context(), engine.Input{Params: params, Entries: entries})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// reportParams reads revenue_k, sector and any indicator given as
// "esg.<indicator id>=<value>".
func reportParams(r *http.Request) (engine.Params, error) {
	q := r.URL.Query()
	p := engine.Params{Sector: q.Get("sector")}
	if raw := q.Get("revenue_k"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return engine.Params{}, &greenops.ValidationError{Field: "revenue_k", Value: raw, Err: err}
		}
		if err = sector.CheckRevenue(v); err != nil {
			return engine.Params{}, err
		}
		p.RevenueK = &v
	}
	for key, values := range q {
		id, ok := strings.CutPrefix(key, "esg.")
		if !ok || len(values) == 0 {
			continue
		}
		if _, known := esg.Lookup(id); !known {
			return engine.Params{}, &greenops.ValidationError{Field: "indicator", Value: id, Err: esg.ErrUnknownIndicator}
		}
		v, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return engine.Params{}, &greenops.ValidationError{Field: id, Value: values[0], Err: err}
		}
		if p.Indicators == nil {
			p.Indicators = make(map[string]float64)
		}
		p.Indicators[id] = v
	}
	return p, nil
}

func (s *Server) compliance(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Entries().List(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compliance.Evaluate(s.engine.Dataset().Taxonomy, entries))
}

func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.store.Metadata().Subjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

// historyResponse carries a chain with the outcome of its verification.
type historyResponse struct {
	SubjectID     string                         `json:"subject_id"`
	Versions      []metadata.CalculationMetadata `json:"versions"`
	ChainVerified bool                           `json:"chain_verified"`
	ChainError    string                         `json:"chain_error,omitempty"`
}

func (s *Server) metadataHistory(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	history, err := s.store.Metadata().History(r.Context(), subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := historyResponse{SubjectID: subject, Versions: history, ChainVerified: true}
	if err = metadata.VerifyChain(history); err != nil {
		resp.ChainVerified = false
		resp.ChainError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordMetadata(w http.ResponseWriter, r *http.Request) {
	var draft metadata.Draft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := metadata.NewRecord(draft, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err = s.store.Metadata().Append(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) reviseMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var rev metadata.Revision
	if err := decodeBody(r, &rev); err != nil {
		writeError(w, r, err)
		return
	}
	prev, err := s.store.Metadata().Latest(ctx, chi.URLParam(r, "subject"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, err := metadata.Revise(prev, rev, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err = s.store.Metadata().Append(ctx, next); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, next)
}
