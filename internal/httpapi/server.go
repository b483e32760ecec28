// Package httpapi exposes the conversational agent over HTTP: a streaming
// chat endpoint, tool schema listing and a health check.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/medkiosk/pharma-agent/internal/agent"
	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/monitor"
	"github.com/medkiosk/pharma-agent/internal/userdb"
)

type Options struct {
	Logger *slog.Logger

	Orchestrator *agent.Orchestrator
	Prompts      *agent.PromptBuilder
	Schemas      []agent.ToolSchema

	// Users enables conversation persistence and usage tracking; nil disables
	// tracking without affecting chat.
	Users *userdb.Store

	Health *monitor.Service

	ListenAddr      string
	AllowedOrigins  []string
	DefaultLanguage string
}

type Server struct {
	log *slog.Logger

	orchestrator *agent.Orchestrator
	prompts      *agent.PromptBuilder
	schemas      []agent.ToolSchema
	users        *userdb.Store
	health       *monitor.Service

	addr            string
	allowedOrigins  []string
	defaultLanguage string

	ln  net.Listener
	srv *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("missing Orchestrator")
	}
	if opts.Prompts == nil {
		return nil, errors.New("missing Prompts")
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		return nil, errors.New("missing ListenAddr")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	lang := strings.TrimSpace(opts.DefaultLanguage)
	if lang == "" {
		lang = i18n.LangEnglish
	}

	return &Server{
		log:             logger,
		orchestrator:    opts.Orchestrator,
		prompts:         opts.Prompts,
		schemas:         opts.Schemas,
		users:           opts.Users,
		health:          opts.Health,
		addr:            strings.TrimSpace(opts.ListenAddr),
		allowedOrigins:  opts.AllowedOrigins,
		defaultLanguage: lang,
	}, nil
}

// Handler returns the routed handler; exposed separately so tests can drive
// the API without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/chat/tools", s.handleTools)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withCORS(mux)
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "error", err)
		}
	}()

	s.log.Info("http api listening", "addr", s.addr)
	return nil
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.srv = nil
	s.ln = nil
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage `json:"messages"`
	Language       string        `json:"language,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "missing messages", http.StatusBadRequest)
		return
	}

	lang := i18n.NormalizeLang(req.Language)
	if strings.TrimSpace(req.Language) == "" {
		lang = s.defaultLanguage
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))

	if s.users == nil {
		userID = ""
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if userID != "" && conversationID == "" {
		id, err := s.users.CreateConversation(r.Context(), userID, lang)
		if err != nil {
			s.log.Warn("create conversation failed", "user_id", userID, "err", err)
		} else {
			conversationID = id
		}
	}

	history := make([]agent.ConversationMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, agent.ConversationMessage{Role: m.Role, Content: m.Content})
	}

	if userID != "" && conversationID != "" {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == agent.RoleUser {
			if err := s.users.AddMessage(r.Context(), conversationID, last.Role, last.Content, nil, 0); err != nil {
				s.log.Warn("persist user message failed", "conversation_id", conversationID, "err", err)
			}
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Conversation-Id", conversationID)
	w.WriteHeader(http.StatusOK)

	emit := func(ev agent.OutputEvent) error {
		frame, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := s.orchestrator.RunTurn(r.Context(), agent.TurnOptions{
		SystemPrompt: s.prompts.SystemPrompt(lang),
		History:      history,
		Language:     lang,
		UserID:       userID,
	}, emit)
	if err != nil {
		// Model failures were already surfaced to the client as an error event.
		s.log.Error("chat turn failed", "conversation_id", conversationID, "err", err)
	}

	if userID != "" && conversationID != "" && result.AssistantContent != "" {
		if err := s.users.AddMessage(r.Context(), conversationID, agent.RoleAssistant,
			result.AssistantContent, result.ToolCallsMade, result.TotalTokens); err != nil {
			s.log.Warn("persist assistant message failed", "conversation_id", conversationID, "err", err)
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.schemas,
		"count": len(s.schemas),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
		return
	}
	writeJSON(w, http.StatusOK, s.health.Snapshot(r.Context()))
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
