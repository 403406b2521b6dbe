package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
	"github.com/soyeahso/chatpool/internal/message"
)

// Upstream sends a prompt to the backing chat service using one account's
// credentials. Implementations own the wire protocol; the gateway only
// cares about the reply text and how the call failed.
type Upstream interface {
	Send(ctx context.Context, acct domain.AccountConfig, prompt string, attachments []message.Attachment) (string, error)
}

// RateLimitedError reports that the upstream throttled the account.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate limited, retry after %s", e.RetryAfter)
	}
	return "upstream rate limited"
}

// HTTPUpstream talks to the backing service over HTTP, presenting the
// account's session cookies.
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
	log     *logging.Logger
}

// NewHTTPUpstream creates an upstream client from configuration.
func NewHTTPUpstream(cfg config.UpstreamConfig, log *logging.Logger) *HTTPUpstream {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPUpstream{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.Sub("upstream"),
	}
}

type upstreamRequest struct {
	Prompt      string               `json:"prompt"`
	ConfigID    string               `json:"config_id"`
	Attachments []message.Attachment `json:"attachments,omitempty"`
}

type upstreamResponse struct {
	Text string `json:"text"`
}

// Send posts the prompt with the account's cookies attached.
func (u *HTTPUpstream) Send(ctx context.Context, acct domain.AccountConfig, prompt string, attachments []message.Attachment) (string, error) {
	body, err := json.Marshal(upstreamRequest{
		Prompt:      prompt,
		ConfigID:    acct.ConfigID,
		Attachments: attachments,
	})
	if err != nil {
		return "", fmt.Errorf("encoding upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	cookie := "secure_c_ses=" + acct.SecureCSes + "; csesidx=" + acct.CSesIdx
	if acct.HostCOses != "" {
		cookie += "; host_c_oses=" + acct.HostCOses
	}
	req.Header.Set("Cookie", cookie)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return "", &RateLimitedError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upstream response: %w", err)
	}

	var out upstreamResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding upstream response: %w", err)
	}
	return out.Text, nil
}
