package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsContextCanceled(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"direct context.Canceled", context.Canceled, true},
		{"wrapped context.Canceled", fmt.Errorf("wrapped: %w", context.Canceled), true},
		{"other error", errors.New("some other error"), false},
		{"deadline exceeded is not canceled", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsContextCanceled(tt.err))
		})
	}
}

func TestCallerGone(t *testing.T) {
	assert.False(t, CallerGone(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, CallerGone(ctx))

	timeout, cancelTimeout := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancelTimeout()
	<-timeout.Done()
	assert.False(t, CallerGone(timeout))
}
