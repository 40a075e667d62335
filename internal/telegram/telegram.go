// Package telegram delivers posts to the channel through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"vestnik/internal/logger"
	"vestnik/internal/metrics"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	maxRetries     = 3
	requestTimeout = 30 * time.Second
)

var linkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)

type Client struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func New(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// NewWithBaseURL points the client at a different API host. Used in tests.
func NewWithBaseURL(token, chatID, baseURL string) *Client {
	c := New(token, chatID)
	c.baseURL = baseURL
	return c
}

type apiError struct {
	StatusCode  int
	Description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.StatusCode, e.Description)
}

// SendMessage delivers a Markdown message with retries. If the API rejects
// the formatting, the text is stripped to plain once and resent; a second
// rejection is returned to the caller.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	err := c.sendWithRetry(ctx, text, "Markdown")
	if err == nil {
		return nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		logger.Warn("formatting rejected, resending as plain text", "error", apiErr.Description)
		if plainErr := c.sendWithRetry(ctx, stripMarkdown(text), ""); plainErr == nil {
			return nil
		}
	}

	metrics.TelegramErrors.Inc()
	return err
}

// SendPhoto posts a photo with a caption. Caption limits are the caller's
// concern.
func (c *Client) SendPhoto(ctx context.Context, photoURL, caption string) error {
	payload := map[string]any{
		"chat_id":    c.chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "Markdown",
	}
	err := c.retried(ctx, func() error {
		return c.call(ctx, "sendPhoto", payload)
	})
	if err != nil {
		metrics.TelegramErrors.Inc()
	}
	return err
}

func (c *Client) sendWithRetry(ctx context.Context, text, parseMode string) error {
	payload := map[string]any{
		"chat_id":                  c.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return c.retried(ctx, func() error {
		return c.call(ctx, "sendMessage", payload)
	})
}

func (c *Client) retried(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Formatting errors won't heal with retries.
		var apiErr *apiError
		if errors.As(lastErr, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return lastErr
		}

		if attempt < maxRetries {
			wait := time.Duration(1<<attempt) * time.Second
			logger.Debug("telegram send failed, retrying", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var parsed struct {
			Description string `json:"description"`
		}
		_ = json.Unmarshal(raw, &parsed)
		return &apiError{StatusCode: resp.StatusCode, Description: parsed.Description}
	}
	return nil
}

// stripMarkdown flattens Markdown to plain text: links become "text url",
// formatting characters are dropped.
func stripMarkdown(text string) string {
	text = linkRe.ReplaceAllString(text, "$1 $2")
	return strings.NewReplacer("*", "", "_", "", "`", "").Replace(text)
}
