package embed

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// Backoff parameters for transient embedding failures.
const (
	backoffBase   = 1 * time.Second
	backoffCap    = 30 * time.Second
	backoffJitter = 0.2
)

// Backoff returns the delay before retry number attempt (0-based):
// exponential doubling from the base, capped, with ±20% jitter.
func Backoff(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	jitter := 1 + backoffJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// IsTransient reports whether an error is worth retrying: timeouts,
// connection failures, rate limiting, and server-side errors. Client-side
// rejections (4xx other than 429) are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return ingerr.IsRetryable(err)
}

// classifyTransportError wraps a transport-level failure so the taxonomy
// marks it retryable when appropriate.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ingerr.New(ingerr.ErrCodeNetworkTimeout, "embedding request timed out", err)
	}
	return ingerr.NetworkError("embedding request failed", err)
}
