package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"homeassistant-skill/internal/domain"
)

const maxUtteranceBytes = 4096

type Emitter interface {
	Emit(ctx context.Context, msg domain.Message) error
}

type BusStatus interface {
	Connected() bool
}

type SkillStatus interface {
	Connected() bool
	IntentsEnabled() bool
	DeviceCount() int
}

type Config struct {
	Addr      string
	AuthToken string
	Lang      string
	// TrustProxy keys the rate limit on X-Forwarded-For / X-Real-IP. Only
	// enable it behind a reverse proxy that sets those headers.
	TrustProxy bool
}

// Server is a small debug API for checking the skill's state and injecting
// utterances into the host as if they had been spoken.
type Server struct {
	addr        string
	authToken   string
	lang        string
	bus         Emitter
	busStatus   BusStatus
	skill       SkillStatus
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(cfg Config, bus Emitter, busStatus BusStatus, skill SkillStatus, logger *slog.Logger) *Server {
	s := &Server{
		addr:        cfg.Addr,
		authToken:   cfg.AuthToken,
		lang:        cfg.Lang,
		bus:         bus,
		busStatus:   busStatus,
		skill:       skill,
		logger:      logger.With("component", "httpapi"),
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute, cfg.TrustProxy),
	}
	s.mux.HandleFunc("POST /utterance", s.rateLimiter.Middleware(s.requireToken(s.handleUtterance)))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the bound address once Start has run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func(srv *http.Server) {
		s.logger.Info("debug API starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debug API error", "error", err)
		}
	}(s.server)

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	s.server = nil
	s.listener = nil
	return nil
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.logger.Warn("unauthorized request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUtteranceBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty utterance")
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = s.lang
	}

	sessionID := uuid.NewString()
	msg := domain.NewMessage(domain.EventUtterance, map[string]any{
		"utterances": []string{text},
		"lang":       lang,
	})
	msg.Context["source"] = "debug_api"
	msg.Context["destination"] = []string{"skills"}
	msg.Context["session"] = map[string]any{"session_id": sessionID}

	if err := s.bus.Emit(r.Context(), msg); err != nil {
		s.logger.Error("injecting utterance", "error", err)
		writeError(w, http.StatusServiceUnavailable, "messagebus unavailable")
		return
	}

	s.logger.Info("injected utterance", "text", text, "lang", lang, "session_id", sessionID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "received",
		"utterance":  text,
		"session_id": sessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	busConnected := s.busStatus.Connected()

	status := "ok"
	code := http.StatusOK
	if !busConnected {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":          status,
		"bus_connected":   busConnected,
		"phal_connected":  s.skill.Connected(),
		"intents_enabled": s.skill.IntentsEnabled(),
		"devices":         s.skill.DeviceCount(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
