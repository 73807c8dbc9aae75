package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const webhookUserAgent = "pulsewatch-webhook"

// WebhookSender posts alerts as {"content": text} to the alert's webhook
// URL, which is the payload shape Discord expects. Alerts without a webhook
// URL are ignored.
type WebhookSender struct {
	client        *http.Client
	hmacSecret    string
	customHeaders map[string]string
}

// WebhookOption configures a [WebhookSender].
type WebhookOption func(*WebhookSender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookSender) { w.client = c }
}

// WithSecret signs every payload with HMAC-SHA256 in the X-Signature header.
func WithSecret(secret string) WebhookOption {
	return func(w *WebhookSender) { w.hmacSecret = secret }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) WebhookOption {
	return func(w *WebhookSender) { w.customHeaders = headers }
}

// NewWebhookSender creates a [WebhookSender].
func NewWebhookSender(opts ...WebhookOption) *WebhookSender {
	w := &WebhookSender{client: http.DefaultClient}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send implements [Sender]. An alert without a webhook URL returns
// [ErrNoDestination].
func (w *WebhookSender) Send(ctx context.Context, alert Alert) error {
	if alert.WebhookURL == "" {
		return ErrNoDestination
	}

	body, err := json.Marshal(webhookPayload{Content: alert.Text})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, alert.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	for key, value := range w.customHeaders {
		req.Header.Set(key, value)
	}
	if w.hmacSecret != "" {
		signer := hmac.New(sha256.New, []byte(w.hmacSecret))
		signer.Write(body)
		req.Header.Set("X-Signature", hex.EncodeToString(signer.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrSenderRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: received non-2xx response code %d", ErrSenderDropped, resp.StatusCode)
	}
	return nil
}
