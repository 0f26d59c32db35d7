// Package server exposes the selector and the HTML filler over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/ppiankov/surveyfill/internal/selector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Response headers set by /v1/fill
const (
	HeaderTotal   = "X-Surveyfill-Total"
	HeaderChanged = "X-Surveyfill-Changed"
	HeaderRunID   = "X-Surveyfill-Run-Id"
)

const maxBodyBytes = 4 << 20

// Filler fills HTML documents
type Filler interface {
	FillHTML(ctx context.Context, source string, content string) (*pipeline.FillResult, error)
	Selector() *selector.Selector
}

// Server is the HTTP API
type Server struct {
	filler   Filler
	gatherer prometheus.Gatherer
	observer pipeline.Observer
	logger   *zap.Logger
}

// New creates a server. gatherer may be nil to disable /metrics; observer
// records /v1/select runs (fills are observed by the filler itself).
func New(filler Filler, gatherer prometheus.Gatherer, observer pipeline.Observer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{filler: filler, gatherer: gatherer, observer: observer, logger: logger}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.Health)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/select", s.Select)
		r.Post("/fill", s.Fill)
	})

	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Health reports liveness
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SelectRequest is the body of POST /v1/select
type SelectRequest struct {
	Questions []QuestionInput `json:"questions"`
}

// QuestionInput is one question in a select request
type QuestionInput struct {
	ID      string        `json:"id"`
	Options []OptionInput `json:"options"`
}

// OptionInput is one option in a select request; it implements selector.Option
type OptionInput struct {
	Label   string `json:"text"`
	Checked bool   `json:"selected"`
}

// Text returns the option text
func (o *OptionInput) Text() string { return o.Label }

// Selected returns the caller-reported selection state
func (o *OptionInput) Selected() bool { return o.Checked }

// SelectResponse is the body returned by POST /v1/select
type SelectResponse struct {
	Decisions []DecisionOutput `json:"decisions"`
	Summary   model.Summary    `json:"summary"`
}

// DecisionOutput is the wire form of a selector decision
type DecisionOutput struct {
	QuestionID string           `json:"question_id"`
	Winner     int              `json:"winner"`
	Text       string           `json:"text,omitempty"`
	Score      int              `json:"score"`
	Scores     []selector.Score `json:"scores,omitempty"`
	Fallback   bool             `json:"fallback,omitempty"`
	Changed    bool             `json:"changed"`
	Skipped    bool             `json:"skipped,omitempty"`
}

// Select decides a batch of questions supplied as JSON
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	questions := make([]selector.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = selector.Question{ID: q.ID}
		for j := range q.Options {
			questions[i].Options = append(questions[i].Options, &q.Options[j])
		}
	}

	decisions, summary := s.filler.Selector().DecideAll(questions)
	if s.observer != nil {
		s.observer.Observe(pipeline.TriggerAPI, summary)
	}

	resp := SelectResponse{
		Decisions: make([]DecisionOutput, len(decisions)),
		Summary:   summary,
	}
	for i, d := range decisions {
		out := DecisionOutput{
			QuestionID: d.QuestionID,
			Winner:     d.Winner,
			Score:      d.Score.Value,
			Scores:     d.Scores,
			Fallback:   d.Fallback,
			Changed:    d.Changed,
			Skipped:    d.Skipped,
		}
		if d.Option != nil {
			out.Text = d.Option.Text()
		}
		resp.Decisions[i] = out
	}

	writeJSON(w, http.StatusOK, resp)
}

// FillResponse is returned by POST /v1/fill?format=json
type FillResponse struct {
	Report *model.Report `json:"report"`
	HTML   string        `json:"html"`
}

// Fill fills the HTML request body and returns the filled page
func (s *Server) Fill(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read body: %w", err))
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "request:" + middleware.GetReqID(r.Context())
	}

	ctx := pipeline.WithTrigger(r.Context(), pipeline.TriggerAPI)
	result, err := s.filler.FillHTML(ctx, source, string(body))
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	summary := result.Report.Summary
	w.Header().Set(HeaderTotal, strconv.Itoa(summary.Total))
	w.Header().Set(HeaderChanged, strconv.Itoa(summary.Changed))
	w.Header().Set(HeaderRunID, result.Report.RunID)

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, FillResponse{Report: result.Report, HTML: result.HTML})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.HTML)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Debug("request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
