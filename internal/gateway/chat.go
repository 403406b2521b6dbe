package gateway

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/message"
	"github.com/soyeahso/chatpool/internal/routing"
)

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []message.Message `json:"messages"`
	User     string            `json:"user,omitempty"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// clientID identifies the caller for conversation fingerprinting. The
// explicit user field wins; otherwise fall back to the caller's address so
// different clients with identical openers don't share a binding.
func clientID(r *http.Request, req chatRequest) string {
	if req.User != "" {
		return req.User
	}
	if v := r.Header.Get("X-Client-ID"); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handleChatCompletions is the chat entrypoint: fingerprint the
// conversation, route it to an account, relay to the upstream, and report
// how the account behaved.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if !s.checkAPIKey(w, r) {
		return
	}
	if s.upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "no upstream configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	fp := routing.Fingerprint(req.Messages, clientID(r, req))

	p := s.mgr.Current()
	rec, err := s.router.RouteOrBind(fp, p)
	if err != nil {
		if errors.Is(err, domain.ErrNoHealthyAccount) {
			writeError(w, http.StatusServiceUnavailable, "no healthy account available, retry later")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	prompt := message.BuildContextText(req.Messages)
	_, attachments := message.ParseLastMessage(r.Context(), req.Messages, s.httpClient, s.log)

	s.log.Debug().
		Str("account", rec.ID()).
		Str("fingerprint", fp).
		Int("attachments", len(attachments)).
		Msg("routing chat request")

	text, err := s.upstream.Send(r.Context(), rec.Config, prompt, attachments)
	if err != nil {
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			p.ReportOutcome(rec.ID(), domain.OutcomeRateLimited)
			s.log.Warn().Str("account", rec.ID()).Msg("account rate limited by upstream")
			writeError(w, http.StatusTooManyRequests, "upstream rate limited, retry later")
			return
		}
		p.ReportOutcome(rec.ID(), domain.OutcomeError)
		s.log.Error().Err(err).Str("account", rec.ID()).Msg("upstream call failed")
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	p.ReportOutcome(rec.ID(), domain.OutcomeSuccess)

	writeJSON(w, http.StatusOK, chatResponse{
		ID:      "chatcmpl-" + uuid.New().String(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      responseMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
	})
}
