package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fynex/chat"
	"fynex/completion"
	"fynex/pkg/reqctx"

	"go.uber.org/zap"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	AccessToken string        `json:"accessToken,omitempty"`
}

func (req *ChatRequest) turn() (chat.Turn, error) {
	if len(req.Messages) == 0 {
		return chat.Turn{}, errors.New("messages cannot be empty")
	}
	msgs := make([]completion.Message, 0, len(req.Messages))
	for i, m := range req.Messages {
		var role completion.Role
		switch strings.ToLower(m.Role) {
		case "user":
			role = completion.RoleUser
		case "assistant":
			role = completion.RoleAssistant
		default:
			return chat.Turn{}, fmt.Errorf("message %d has unsupported role %q", i, m.Role)
		}
		msgs = append(msgs, completion.Message{Role: role, Content: m.Content})
	}
	return chat.Turn{Messages: msgs, AccessToken: strings.TrimSpace(req.AccessToken)}, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := reqctx.Logger(r.Context(), s.logger)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	turn, err := req.turn()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Debug("chat request", zap.Int("messages", len(turn.Messages)), zap.Bool("has_token", turn.AccessToken != ""))

	rc := http.NewResponseController(w)
	started := false
	emit := func(text string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(text)); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	res, err := s.chat.Run(r.Context(), turn, emit)
	switch {
	case err != nil && r.Context().Err() != nil:
		logger.Info("client disconnected during chat turn")
		return
	case err != nil && !started:
		logger.Error("chat turn failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to generate a response")
		return
	case err != nil:
		logger.Warn("chat stream ended early", zap.Error(err))
		return
	}

	if !started {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
	if res == nil {
		return
	}
	logger.Info("chat turn finished",
		zap.String("tool", res.Tool),
		zap.String("job_correlation_id", res.CorrelationID),
		zap.Bool("follow_up", res.FollowUp))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
