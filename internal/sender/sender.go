// Package sender is the send-endpoint HTTP client (§6): a POST of
// {"name","phone","message"} that is a success only on HTTP 2xx AND a
// body carrying `{"success": true}`. It is grounded on the pack's
// 46elks provider — go-retryablehttp for the client, pkg/errors for
// wrapping — with a global x/time/rate limiter layered on top the way
// the pewbot broadcast worker throttles its own outbound calls.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Request is the wire body §6 defines.
type Request struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type invocationIDKey struct{}

// WithInvocationID attaches the dispatcher's per-invocation
// correlation id to ctx; Send reads it back out to set the
// X-Invocation-ID header (§6, SPEC_FULL.md §2.1).
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey{}, id)
}

func invocationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(invocationIDKey{}).(string)
	return id
}

// Sender posts one message to the configured send endpoint.
type Sender struct {
	client   *retryablehttp.Client
	endpoint string
	limiter  *rate.Limiter
}

// New builds a Sender. limiter is the global outbound rate governor
// (spec.md §5's note that this is additive to, and independent of, the
// per-campaign pacing computed by C1); pass nil to disable it.
func New(endpoint string, limiter *rate.Limiter) *Sender {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 200 * time.Millisecond
	client.Logger = nil
	// Only transport-level errors are retried; any HTTP response,
	// including a 5xx, is handed back to Send and classified once.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	return &Sender{client: client, endpoint: endpoint, limiter: limiter}
}

// Send performs the POST and classifies the outcome per §6/§7's
// send-failed error kind: any non-2xx status or a false/absent
// "success" field is a failure, never a panic or fatal error.
func (s *Sender) Send(ctx context.Context, req Request) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode send request")
	}

	httpReq, err := retryablehttp.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build send request")
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if invocationID := invocationIDFromContext(ctx); invocationID != "" {
		httpReq.Header.Set("X-Invocation-Id", invocationID)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read send response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("send endpoint returned status %d: %s", resp.StatusCode, string(payload))
	}

	var r response
	if err := json.Unmarshal(payload, &r); err != nil {
		return errors.Wrap(err, "decode send response")
	}
	if !r.Success {
		if r.Error == "" {
			r.Error = "send endpoint reported failure with no error detail"
		}
		return errors.New(r.Error)
	}
	return nil
}

// NewLimiter builds the shared governor: a bucket of burst tokens
// refilled at ratePerSec; a non-positive ratePerSec means no limit.
func NewLimiter(ratePerSec float64, burst int) *rate.Limiter {
	if ratePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(ratePerSec), burst)
}
