package runtime

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forced := make(chan struct{})
	watchSignals(cancel, zerolog.Nop(), func() { close(forced) }, syscall.SIGUSR1)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled on first signal")
	}

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-forced:
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not force exit")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
