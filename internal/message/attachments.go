package message

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/chatpool/internal/logging"
)

// Attachment is a fetched or decoded file ready to forward upstream.
type Attachment struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64
}

var dataURIPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

const (
	downloadTimeout = 30 * time.Second
	maxAttachment   = 20 << 20 // 20 MiB per file
)

// ParseLastMessage splits the final turn into its text and attachments.
// Data URIs are taken as-is; http(s) URLs are downloaded in parallel.
// A failed or vanished (404) download is logged and skipped; attachments
// degrade, they never fail the request.
func ParseLastMessage(ctx context.Context, msgs []Message, client *http.Client, log *logging.Logger) (string, []Attachment) {
	if len(msgs) == 0 {
		return "", nil
	}
	last := msgs[len(msgs)-1]
	if !last.Content.Multimodal() {
		return ExtractText(last.Content), nil
	}

	var text strings.Builder
	var attachments []Attachment
	var urls []string

	for _, part := range last.Content.PartList() {
		switch part.Type {
		case "text":
			text.WriteString(part.Text)
		case "image_url":
			if part.ImageURL == nil {
				continue
			}
			url := part.ImageURL.URL
			if m := dataURIPattern.FindStringSubmatch(url); m != nil {
				attachments = append(attachments, Attachment{MIME: m[1], Data: m[2]})
			} else if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
				urls = append(urls, url)
			} else {
				log.Warn().Str("url", truncate(url, 30)).Msg("unsupported attachment reference")
			}
		}
	}

	attachments = append(attachments, downloadAll(ctx, urls, client, log)...)
	return text.String(), attachments
}

// downloadAll fetches every URL concurrently, preserving input order and
// dropping failures.
func downloadAll(ctx context.Context, urls []string, client *http.Client, log *logging.Logger) []Attachment {
	if len(urls) == 0 {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	results := make([]*Attachment, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			att, err := download(ctx, url, client)
			if err != nil {
				log.Warn().Str("url", truncate(url, 50)).Err(err).Msg("attachment download failed")
				return
			}
			results[i] = att
		}(i, url)
	}
	wg.Wait()

	out := make([]Attachment, 0, len(urls))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func download(ctx context.Context, url string, client *http.Client) (*Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("attachment gone (404)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachment))
	if err != nil {
		return nil, err
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	return &Attachment{MIME: mime, Data: base64.StdEncoding.EncodeToString(body)}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
