package server

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/transport/httpdto"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

func TestCommandLimiterExhaustsPerAction(t *testing.T) {
	rl := newCommandLimiter()

	for i := 0; i < DefaultCommandLimits.MaxSends; i++ {
		require.True(t, rl.Allow(httpdto.StreamActionSend), "send %d", i)
	}
	require.False(t, rl.Allow(httpdto.StreamActionSend))

	// Other budgets are independent.
	require.True(t, rl.Allow(httpdto.StreamActionSelect))
	require.True(t, rl.Allow(httpdto.StreamActionPing))
}

func TestCommandLimiterRefillsAfterWindow(t *testing.T) {
	rl := newCommandLimiter()
	for i := 0; i < DefaultCommandLimits.MaxSelects; i++ {
		rl.Allow(httpdto.StreamActionSelect)
	}
	require.False(t, rl.Allow(httpdto.StreamActionSelect))

	rl.mu.Lock()
	rl.lastRefill = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	require.True(t, rl.Allow(httpdto.StreamActionSelect))
}

func TestCommandLimiterRejectsUnknownAction(t *testing.T) {
	rl := newCommandLimiter()
	require.False(t, rl.Allow("typing"))
}

func TestSendErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{aixos_errors.ErrInvalidInput, "INVALID_INPUT"},
		{aixos_errors.ErrUnauthorized, "UNAUTHORIZED"},
		{aixos_errors.ErrConflict, "CONFLICT"},
		{aixos_errors.ErrSendFailed, "SEND_FAILED"},
		{fmt.Errorf("sending message: %w", aixos_errors.ErrSendFailed), "SEND_FAILED"},
		{errors.New("something else"), "INTERNAL"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, sendErrorCode(tc.err), tc.err.Error())
	}
}
