// Package mail polls a Microsoft mailbox for account verification codes.
// Access goes through an OAuth refresh token; no mailbox password is
// ever stored. Used during account provisioning when the upstream mails
// a login challenge.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/logging"
)

const (
	imapAddr = "outlook.office365.com:993"

	// recentWindow bounds the default search when no since time is given.
	recentWindow = 5 * time.Minute

	// scanDepth is how many of the newest messages to inspect per mailbox.
	scanDepth = 5
)

// mailboxes are checked in order; Microsoft routinely files the upstream's
// verification mail into Junk.
var mailboxes = []string{"INBOX", "Junk"}

// codePattern matches the six-character verification codes the upstream mails.
var codePattern = regexp.MustCompile(`[A-Z0-9]{6}`)

// ErrCodeTimeout is returned when polling exhausts its budget without a code.
var ErrCodeTimeout = errors.New("mail: verification code timeout")

// ErrNoCode is returned by a single fetch that found no matching message.
var ErrNoCode = errors.New("mail: no verification code found")

// Client fetches verification codes from a Microsoft mailbox over IMAP.
type Client struct {
	cfg config.MailConfig
	log *logging.Logger

	// fetch is swappable in tests.
	fetch func(ctx context.Context, since time.Time) (string, error)
}

// NewClient creates a mailbox client from the mail configuration.
func NewClient(cfg config.MailConfig, log *logging.Logger) *Client {
	c := &Client{cfg: cfg, log: log.Sub("mail")}
	c.fetch = c.fetchIMAP
	return c
}

// accessToken exchanges the refresh token for a short-lived access token.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID: c.cfg.ClientID,
		Endpoint: microsoft.AzureADEndpoint(c.cfg.Tenant),
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.cfg.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}
	return tok.AccessToken, nil
}

// FetchCode makes one pass over the mailbox looking for a verification code
// in messages newer than since. A zero since defaults to the recent window.
func (c *Client) FetchCode(ctx context.Context, since time.Time) (string, error) {
	if c.cfg.Email == "" {
		return "", errors.New("mail: no mailbox configured")
	}
	if since.IsZero() {
		since = time.Now().Add(-recentWindow)
	}
	return c.fetch(ctx, since)
}

// PollForCode repeatedly fetches until a code appears, the poll budget is
// spent, or the context is cancelled.
func (c *Client) PollForCode(ctx context.Context, since time.Time) (string, error) {
	if c.cfg.Email == "" {
		return "", errors.New("mail: no mailbox configured")
	}
	if since.IsZero() {
		since = time.Now().Add(-recentWindow)
	}

	interval := time.Duration(c.cfg.PollIntervalSeconds) * time.Second
	timeout := time.Duration(c.cfg.PollTimeoutSeconds) * time.Second
	retries := 1
	if interval > 0 && timeout > interval {
		retries = int(timeout / interval)
	}

	for i := 1; i <= retries; i++ {
		code, err := c.fetch(ctx, since)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrNoCode) {
			c.log.Warn().Err(err).Int("attempt", i).Msg("code fetch failed")
		}
		if i == retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}

	c.log.Error().Msg("verification code timeout")
	return "", ErrCodeTimeout
}

// fetchIMAP dials the mailbox, scans the newest messages in each mailbox,
// and returns the first verification code found.
func (c *Client) fetchIMAP(ctx context.Context, since time.Time) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	cl, err := client.DialTLS(imapAddr, &tls.Config{})
	if err != nil {
		return "", fmt.Errorf("connecting to imap: %w", err)
	}
	defer cl.Logout()

	if err := cl.Authenticate(&xoauth2Client{username: c.cfg.Email, token: token}); err != nil {
		return "", fmt.Errorf("imap auth: %w", err)
	}

	for _, name := range mailboxes {
		code, err := c.scanMailbox(cl, name, since)
		if err != nil {
			c.log.Debug().Err(err).Str("mailbox", name).Msg("mailbox scan failed")
			continue
		}
		if code != "" {
			c.log.Info().Str("mailbox", name).Msg("verification code found")
			return code, nil
		}
	}

	return "", ErrNoCode
}

// scanMailbox checks the newest messages in one mailbox for a code.
func (c *Client) scanMailbox(cl *client.Client, name string, since time.Time) (string, error) {
	mbox, err := cl.Select(name, true)
	if err != nil {
		return "", fmt.Errorf("selecting %s: %w", name, err)
	}
	if mbox.Messages == 0 {
		return "", nil
	}

	from := uint32(1)
	if mbox.Messages > scanDepth {
		from = mbox.Messages - scanDepth + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, scanDepth)
	done := make(chan error, 1)
	go func() {
		done <- cl.Fetch(seqset, items, messages)
	}()

	var msgList []*imap.Message
	for msg := range messages {
		msgList = append(msgList, msg)
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetching from %s: %w", name, err)
	}

	// Newest first
	for i := len(msgList) - 1; i >= 0; i-- {
		msg := msgList[i]
		if msg.Envelope != nil && !msg.Envelope.Date.IsZero() && msg.Envelope.Date.Before(since) {
			continue
		}

		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		parsed, err := mail.ReadMessage(body)
		if err != nil {
			continue
		}
		if code, ok := extractCode(messageText(parsed)); ok {
			return code, nil
		}
	}

	return "", nil
}

// extractCode finds the first six-character verification code in the text.
func extractCode(text string) (string, bool) {
	match := codePattern.FindString(text)
	return match, match != ""
}

// messageText pulls the first text part out of a message, decoding
// quoted-printable bodies. Returns "" when nothing textual is found.
func messageText(msg *mail.Message) string {
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return ""
		}
		return string(body)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(msg.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err != nil {
				return ""
			}
			partMediaType, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			if !strings.HasPrefix(partMediaType, "text/") {
				continue
			}
			var r io.Reader = p
			if strings.EqualFold(p.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
				r = quotedprintable.NewReader(p)
			}
			body, err := io.ReadAll(r)
			if err != nil {
				continue
			}
			return string(body)
		}
	}

	if strings.HasPrefix(mediaType, "text/") {
		var r io.Reader = msg.Body
		if strings.EqualFold(msg.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
			r = quotedprintable.NewReader(msg.Body)
		}
		body, err := io.ReadAll(r)
		if err != nil {
			return ""
		}
		return string(body)
	}

	return ""
}
