package daemon

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/report"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Dispatcher is the tracker side of the server.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev tracker.Event) tracker.Session
	State() tracker.Session
}

// Clearer wipes all stored activity.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Server serves the local ingest API.
type Server struct {
	registry *Registry
	tracker  Dispatcher
	reporter *report.Reporter
	clearer  Clearer
	clock    clock.Clock
	log      zerolog.Logger

	authToken      string
	maxRequestSize int64
	defaultRange   report.Range
}

// ServerOptions holds the request limits and defaults.
type ServerOptions struct {
	AuthToken      string
	MaxRequestSize int64
	DefaultRange   report.Range
}

// NewServer wires the handlers. registry must be the Browser the tracker
// was built with.
func NewServer(registry *Registry, tr Dispatcher, rep *report.Reporter, clr Clearer, clk clock.Clock, opts ServerOptions, log zerolog.Logger) *Server {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 1 << 20
	}
	if opts.DefaultRange == "" {
		opts.DefaultRange = report.RangeToday
	}
	return &Server{
		registry:       registry,
		tracker:        tr,
		reporter:       rep,
		clearer:        clr,
		clock:          clk,
		log:            log,
		authToken:      opts.AuthToken,
		maxRequestSize: opts.MaxRequestSize,
		defaultRange:   opts.DefaultRange,
	}
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.handleEvents)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /clear", s.handleClear)
	return s.withAuth(mux)
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token := r.Header.Get("X-Dwell-Token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

// handleEvents accepts a single message or an array of messages.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxRequestSize))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	msgs, err := decodeMessages(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for i, msg := range msgs {
		if err := msg.Validate(); err != nil {
			s.log.Warn().Err(err).Str("type", msg.Type).Int("index", i).Msg("rejected batch")
			writeError(w, http.StatusBadRequest, fmt.Sprintf("message %d: %v", i, err))
			return
		}
	}

	accepted := 0
	for _, msg := range msgs {
		ev, ok, err := s.registry.Apply(msg)
		if err != nil {
			s.log.Warn().Err(err).Str("type", msg.Type).Msg("rejected event")
			continue
		}
		accepted++
		if ok {
			s.tracker.Dispatch(context.WithoutCancel(r.Context()), ev)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted})
}

func decodeMessages(body []byte) ([]Message, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	if strings.HasPrefix(trimmed, "[") {
		var msgs []Message
		if err := sonic.UnmarshalString(trimmed, &msgs); err != nil {
			return nil, errors.New("invalid JSON: " + err.Error())
		}
		return msgs, nil
	}
	var msg Message
	if err := sonic.UnmarshalString(trimmed, &msg); err != nil {
		return nil, errors.New("invalid JSON: " + err.Error())
	}
	return []Message{msg}, nil
}

// StatusResponse is the body of GET /status. Tracking is null when idle.
type StatusResponse struct {
	Status        string     `json:"status"`
	Tracking      *string    `json:"tracking"`
	TabID         int        `json:"tabId"`
	WindowFocused bool       `json:"windowFocused"`
	Since         *time.Time `json:"since,omitempty"`
	Tabs          int        `json:"tabs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.tracker.State()
	resp := StatusResponse{
		Status:        "ok",
		TabID:         st.TabID,
		WindowFocused: st.WindowFocused,
		Tabs:          s.registry.Len(),
	}
	if st.Tracking() {
		domain, since := st.Domain, st.StartedAt
		resp.Tracking = &domain
		resp.Since = &since
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rng := s.defaultRange
	if q := r.URL.Query().Get("range"); q != "" {
		var err error
		if rng, err = report.ParseRange(q); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	sum, err := s.reporter.Summary(r.Context(), rng, s.clock.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("report failed")
		writeError(w, http.StatusInternalServerError, "error loading data")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.clearer.Clear(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("clear failed")
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
