package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", syscall.EBUSY, true},
		{"again", &os.PathError{Op: "rename", Path: "a", Err: syscall.EAGAIN}, true},
		{"interrupted", fmt.Errorf("remove: %w", syscall.EINTR), true},
		{"not exist", os.ErrNotExist, false},
		{"permission", syscall.EACCES, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryFileRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	err := RetryFile(func() error {
		if calls.Add(1) < 3 {
			return syscall.EBUSY
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryFileStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	err := RetryFile(func() error {
		calls.Add(1)
		return os.ErrPermission
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPollUntil(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	var last atomic.Int64
	err := PollUntil(context.Background(), PollConfig{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func() bool { return n.Add(1) >= 3 },
		func(elapsed time.Duration) { last.Store(int64(elapsed)) })
	require.NoError(t, err)
	assert.Positive(t, last.Load())

	err = PollUntil(context.Background(), PollConfig{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond},
		func() bool { return false }, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTryUntil(t *testing.T) {
	t.Parallel()

	cfg := PollConfig{Timeout: time.Second, Interval: time.Millisecond}

	var n atomic.Int32
	require.NoError(t, TryUntil(cfg, func() (bool, error) { return n.Add(1) == 3, nil }))
	assert.Equal(t, int32(3), n.Load())

	boom := errors.New("boom")
	assert.ErrorIs(t, TryUntil(cfg, func() (bool, error) { return false, boom }), boom)

	short := PollConfig{Timeout: 10 * time.Millisecond, Interval: 2 * time.Millisecond}
	assert.ErrorIs(t, TryUntil(short, func() (bool, error) { return false, nil }), ErrTimeout)
}
