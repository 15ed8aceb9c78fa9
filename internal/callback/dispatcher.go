// Package callback delivers the terminal intelligence payload to the
// external evaluator over HTTP. The engine guarantees at-most-once
// dispatch per session; this package only has to get one payload onto the
// wire, with bounded retries and an HMAC signature the receiver can verify.
package callback

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ankitpatel990/neuvox/internal/engine"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the request body.
	HeaderSignature = "X-Neuvox-Signature"
	// HeaderDelivery carries a unique id per delivery attempt series, so
	// the receiver can deduplicate redelivered payloads.
	HeaderDelivery = "X-Neuvox-Delivery"

	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
)

// HTTPDispatcher POSTs callback payloads to a fixed URL.
type HTTPDispatcher struct {
	url        string
	signingKey []byte
	client     *http.Client
	attempts   int
}

// HTTPOption configures an HTTPDispatcher.
type HTTPOption func(*HTTPDispatcher)

// WithHTTPClient overrides the default client (tests, custom transport).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(d *HTTPDispatcher) { d.client = c }
}

// WithAttempts overrides the delivery attempt budget.
func WithAttempts(n int) HTTPOption {
	return func(d *HTTPDispatcher) {
		if n > 0 {
			d.attempts = n
		}
	}
}

// NewHTTPDispatcher creates a dispatcher for the given callback URL. When
// signingKey is non-empty every request is signed with HMAC-SHA256.
func NewHTTPDispatcher(url, signingKey string, opts ...HTTPOption) *HTTPDispatcher {
	d := &HTTPDispatcher{
		url:        url,
		signingKey: []byte(signingKey),
		client:     &http.Client{Timeout: defaultTimeout},
		attempts:   defaultAttempts,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch delivers the payload, retrying transient failures with a short
// backoff. It never returns an error: the engine has already frozen the
// session, so all this can do on persistent failure is log it.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, payload *engine.CallbackPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("callback_encode_failed")
		return
	}
	deliveryID := uuid.New().String()

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				log.Warn().Str("session_id", payload.SessionID).Msg("callback_cancelled")
				return
			case <-time.After(time.Duration(attempt-1) * time.Second):
			}
		}
		lastErr = d.post(ctx, body, deliveryID)
		if lastErr == nil {
			log.Info().Str("session_id", payload.SessionID).Str("delivery_id", deliveryID).
				Int("attempt", attempt).Msg("callback_dispatched")
			return
		}
	}
	log.Error().Err(lastErr).Str("session_id", payload.SessionID).
		Str("delivery_id", deliveryID).Msg("callback_delivery_failed")
}

func (d *HTTPDispatcher) post(ctx context.Context, body []byte, deliveryID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderDelivery, deliveryID)
	if len(d.signingKey) > 0 {
		req.Header.Set(HeaderSignature, Sign(d.signingKey, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting callback: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under key.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the body in constant
// time. Exposed for receivers and tests.
func VerifySignature(key, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
