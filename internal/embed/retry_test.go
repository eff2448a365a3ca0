package embed

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	for attempt, want := range []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	} {
		d := Backoff(attempt)
		assert.InDelta(t, float64(want), float64(d), float64(want)*0.25, "attempt %d", attempt)
	}

	// Far-out attempts stay at the cap (within jitter).
	d := Backoff(20)
	assert.LessOrEqual(t, d, time.Duration(float64(backoffCap)*1.25))
	assert.GreaterOrEqual(t, d, time.Duration(float64(backoffCap)*0.75))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"rate limited", ingerr.New(ingerr.ErrCodeRateLimited, "429", nil), true},
		{"server error", ingerr.New(ingerr.ErrCodeServerError, "503", nil), true},
		{"bad request", ingerr.New(ingerr.ErrCodeInvalidInput, "400", nil), false},
		{"auth", ingerr.New(ingerr.ErrCodeAuthFailed, "401", nil), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
