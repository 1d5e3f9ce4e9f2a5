package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy bounds the attempts and backoff of one runtime call.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetryPolicy(attempts int, base, ceiling time.Duration, def retryPolicy) retryPolicy {
	if attempts <= 0 {
		attempts = def.maxAttempts
	}
	if base <= 0 {
		base = def.baseDelay
	}
	if ceiling <= 0 {
		ceiling = def.maxDelay
	}
	return retryPolicy{maxAttempts: attempts, baseDelay: base, maxDelay: ceiling}
}

// retryable marks an attempt error as worth another try. after overrides the
// computed backoff when the server sent a hint.
type retryable struct {
	err   error
	after time.Duration
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

func retryAfter(err error, after time.Duration) error { return &retryable{err: err, after: after} }

// run calls attempt until it succeeds, returns a non-retryable error, or the
// attempts are spent. The last underlying error is returned.
func (p retryPolicy) run(ctx context.Context, attempt func() error) error {
	backoff := p.baseDelay
	var lastErr error
	for n := 1; n <= p.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if err == nil {
			return nil
		}
		var r *retryable
		if !errors.As(err, &r) {
			return err
		}
		lastErr = r.err
		if n == p.maxAttempts {
			break
		}
		wait := r.after
		if wait <= 0 {
			wait = withJitter(backoff)
			if p.maxDelay > 0 && wait > p.maxDelay {
				wait = p.maxDelay
			}
			backoff *= 2
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// isRetryableStatus reports whether a provider status is transient.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// readAPIError decodes an error body. Providers nest the message under "error"
// either as an object or as a plain string.
func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	switch v := raw["error"].(type) {
	case map[string]any:
		apiErr.Message, _ = v["message"].(string)
		switch code := v["code"].(type) {
		case string:
			apiErr.Code = code
		case float64:
			if s, ok := v["status"].(string); ok {
				apiErr.Code = strings.ToLower(s)
			}
		}
	case string:
		apiErr.Message = v
	}
	if apiErr.Message == "" {
		apiErr.Message, _ = raw["message"].(string)
	}
	if apiErr.Code == "" {
		apiErr.Code, _ = raw["code"].(string)
	}
	return apiErr
}

// parseRetryAfter interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d.Truncate(time.Second), true
	}
	return 0, false
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Goog-Request-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies +/- 20% jitter to d.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
