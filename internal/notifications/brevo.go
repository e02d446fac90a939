package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

var ErrMailerDisabled = errors.New("mailer not configured")

// Mailer delivers a rendered HTML email.
type Mailer interface {
	SendHTML(ctx context.Context, toEmail, toName, subject, htmlBody string) (string, error)
}

type BrevoConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Sandbox     bool
	Endpoint    string
}

// BrevoClient sends transactional email through the Brevo HTTP API.
type BrevoClient struct {
	cfg        BrevoConfig
	httpClient *http.Client
}

// NewBrevoClient returns nil when the API key or sender is missing.
func NewBrevoClient(cfg BrevoConfig) *BrevoClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.SenderEmail = strings.TrimSpace(cfg.SenderEmail)
	if cfg.APIKey == "" || cfg.SenderEmail == "" {
		return nil
	}
	if strings.TrimSpace(cfg.SenderName) == "" {
		cfg.SenderName = cfg.SenderEmail
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultBrevoEndpoint
	}
	return &BrevoClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   8 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *BrevoClient) SendHTML(ctx context.Context, toEmail, toName, subject, htmlBody string) (string, error) {
	if c == nil {
		return "", ErrMailerDisabled
	}
	switch {
	case strings.TrimSpace(toEmail) == "":
		return "", errors.New("missing recipient email")
	case strings.TrimSpace(subject) == "":
		return "", errors.New("missing subject")
	case strings.TrimSpace(htmlBody) == "":
		return "", errors.New("missing html body")
	}

	msg := brevoMessage{
		Sender:      brevoContact{Name: c.cfg.SenderName, Email: c.cfg.SenderEmail},
		To:          []brevoContact{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}
	if c.cfg.Sandbox {
		msg.Headers = map[string]string{"X-Sib-Sandbox": "drop"}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("brevo marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr brevoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("brevo send failed: status=%d code=%s message=%s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("brevo send failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("brevo decode response: %w", err)
	}
	if strings.TrimSpace(out.MessageID) == "" {
		return "", errors.New("brevo response missing messageId")
	}
	return out.MessageID, nil
}

type brevoMessage struct {
	Sender      brevoContact      `json:"sender"`
	To          []brevoContact    `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
