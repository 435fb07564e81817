package api

import (
	"net/http"
	"strings"

	apperrors "machtms/internal/errors"
)

func (s *Server) registerAgentRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/agent/chat", s.handle("agent.chat", s.agentChat))
	mux.Handle("POST /api/v1/agent/chat/stream", s.handle("agent.chat_stream", s.agentChatStream))
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) agentChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeError(w, apperrors.New(apperrors.CodeInitializationFailure, "agent chat is not configured"))
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, apperrors.New(apperrors.CodeValidation, "message cannot be empty"))
		return
	}
	reply, err := s.deps.Agent.Run(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// agentChatStream answers over server-sent events, one data frame per
// content delta, closing with [DONE] or [ERROR].
func (s *Server) agentChatStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeError(w, apperrors.New(apperrors.CodeInitializationFailure, "agent chat is not configured"))
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, apperrors.New(apperrors.CodeValidation, "message cannot be empty"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeExecutorFailure, "streaming is not supported on this connection"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeFrame := func(payload string) {
		for _, line := range strings.Split(payload, "\n") {
			_, _ = w.Write([]byte("data: " + line + "\n"))
		}
		_, _ = w.Write([]byte("\n"))
		flusher.Flush()
	}

	_, err := s.deps.Agent.RunStream(r.Context(), req.Message, func(delta string) error {
		writeFrame(delta)
		return nil
	})
	if err != nil {
		s.log.Error("agent stream failed", "error", err)
		writeFrame("[ERROR] " + err.Error())
		return
	}
	writeFrame("[DONE]")
}
