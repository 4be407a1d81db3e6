package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/valuescreen/pkg/logger"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(logger.NewNop(), 0)
	err := s.Add("not a cron spec", "refresh", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestAddAcceptsStandardSpec(t *testing.T) {
	s := New(logger.NewNop(), 0)
	assert.NoError(t, s.Add("0 18 * * 1-5", "refresh", func(context.Context) error { return nil }))
	assert.NoError(t, s.Add("@hourly", "cache-sweep", func(context.Context) error { return nil }))
}

func TestRunJobHonorsTimeout(t *testing.T) {
	s := New(logger.NewNop(), 10*time.Millisecond)

	var sawDeadline atomic.Bool
	s.runJob("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			sawDeadline.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	assert.True(t, sawDeadline.Load())
}

func TestRunJobSwallowsErrors(t *testing.T) {
	s := New(logger.NewNop(), 0)
	// Must not panic or propagate.
	s.runJob("broken", func(context.Context) error { return errors.New("boom") })
}

func TestStartStop(t *testing.T) {
	s := New(logger.NewNop(), 0)
	require.NoError(t, s.Add("@every 1h", "tick", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("@hourly", "sweep", func(context.Context) error { return nil }))

	s.Start()
	assert.Equal(t, 2, s.Jobs())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
