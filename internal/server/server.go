// Package server exposes an annotation session over a local JSON HTTP API.
// It is the backend of the reviewer UI; rendering lives elsewhere.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/session"
)

// Default request body limit. Datasets are uploaded whole.
const defaultMaxBodyBytes = 64 << 20

// Options configures the HTTP handler.
type Options struct {
	Logger *slog.Logger

	// WriteRate is the sustained rate of mutating requests per second.
	// Zero disables limiting.
	WriteRate  float64
	WriteBurst int

	MaxBodyBytes int64
}

// Server serves one session.
type Server struct {
	sess     *session.Session
	logger   *slog.Logger
	maxBytes int64
}

// New returns the API handler for sess.
func New(sess *session.Session, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sess:     sess,
		logger:   logger.With("component", "server"),
		maxBytes: opts.MaxBodyBytes,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = defaultMaxBodyBytes
	}

	var limiter *rate.Limiter
	if opts.WriteRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.WriteRate), max(opts.WriteBurst, 1))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, requestLogger(s.logger), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(writeLimiter(limiter))

		r.Post("/dataset", s.loadDataset)
		r.Get("/samples", s.listSamples)
		r.Get("/samples/{id}", s.getSample)
		r.Put("/samples/{id}/scores/overall/{dimension}", s.writeOverall)
		r.Put("/samples/{id}/scores/turns/{turn}/{dimension}", s.writeTurn)
		r.Delete("/samples/{id}/scores", s.resetSample)

		r.Get("/cursor", s.getCursor)
		r.Post("/cursor", s.moveCursor)
		r.Get("/modes", s.getModes)
		r.Put("/modes", s.putModes)

		r.Get("/statistics", s.statistics)
		r.Get("/export/results", s.exportResults)
		r.Get("/export/report", s.exportReport)
		r.Post("/import/results", s.importResults)
	})

	return r
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownSample):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDataset),
		errors.Is(err, domain.ErrInvalidScoreWrite),
		errors.Is(err, domain.ErrInvalidScoreValue),
		errors.Is(err, domain.ErrUnknownDimension),
		errors.Is(err, domain.ErrTurnOutOfRange),
		errors.Is(err, domain.ErrInvalidExport),
		errors.Is(err, session.ErrUnknownMove),
		errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, errResp{err.Error()})
}

var errBadRequest = errors.New("bad request")

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return body, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

type loadResp struct {
	Samples int `json:"samples"`
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := s.sess.LoadDataset(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResp{Samples: n})
}

func (s *Server) listSamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Summaries())
}

func (s *Server) getSample(w http.ResponseWriter, r *http.Request) {
	view, err := s.sess.Sample(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type scoreReq struct {
	Value *float64         `json:"value"`
	Mode  domain.ScoreMode `json:"mode,omitempty"`
}

func (s *Server) writeOverall(w http.ResponseWriter, r *http.Request) {
	s.writeScore(w, r, domain.ScopeOverall, nil)
}

func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request) {
	turn, err := strconv.Atoi(chi.URLParam(r, "turn"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: turn must be an integer", errBadRequest))
		return
	}
	s.writeScore(w, r, domain.ScopeTurn, &turn)
}

func (s *Server) writeScore(w http.ResponseWriter, r *http.Request, scope domain.Scope, turn *int) {
	var req scoreReq
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Value == nil {
		s.writeError(w, fmt.Errorf("%w: value is required", errBadRequest))
		return
	}

	rec, err := s.sess.WriteScore(r.Context(), session.ScoreInput{
		SampleID:  chi.URLParam(r, "id"),
		Scope:     scope,
		Dimension: domain.Dimension(chi.URLParam(r, "dimension")),
		TurnIndex: turn,
		Value:     *req.Value,
		Mode:      req.Mode,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resetResp struct {
	Existed bool `json:"existed"`
}

func (s *Server) resetSample(w http.ResponseWriter, r *http.Request) {
	existed := s.sess.ResetSample(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, resetResp{Existed: existed})
}

type cursorReq struct {
	Index *int   `json:"index,omitempty"`
	Move  string `json:"move,omitempty"`
}

func (s *Server) getCursor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Cursor())
}

func (s *Server) moveCursor(w http.ResponseWriter, r *http.Request) {
	var req cursorReq
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Index != nil {
		writeJSON(w, http.StatusOK, s.sess.Seek(*req.Index))
		return
	}
	st, err := s.sess.Move(req.Move)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getModes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Modes())
}

func (s *Server) putModes(w http.ResponseWriter, r *http.Request) {
	modes := s.sess.Modes()
	if err := s.decode(w, r, &modes); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.sess.SetModes(modes); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modes)
}

func (s *Server) statistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Statistics())
}

func (s *Server) exportResults(w http.ResponseWriter, _ *http.Request) {
	doc := s.sess.ExportResults()
	w.Header().Set("Content-Disposition", `attachment; filename="annotations.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) exportReport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.sess.ExportReport())
}

type importResp struct {
	Records int `json:"records"`
}

func (s *Server) importResults(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := s.sess.ImportResults(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResp{Records: n})
}
