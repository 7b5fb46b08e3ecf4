package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	require.NoError(t, s.Every(time.Second, "tick", func(context.Context) (int, error) {
		runs.Add(1)
		return 1, nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_FailingJobDoesNotStopOthers(t *testing.T) {
	s := New(nil)
	var ok atomic.Int32
	require.NoError(t, s.Every(time.Second, "broken", func(context.Context) (int, error) {
		return 0, fmt.Errorf("boom")
	}))
	require.NoError(t, s.Every(time.Second, "healthy", func(context.Context) (int, error) {
		ok.Add(1)
		return 0, nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return ok.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	s := New(nil)
	var after atomic.Int32
	require.NoError(t, s.Every(time.Second, "panics", func(context.Context) (int, error) {
		if after.Add(1) == 1 {
			panic("sweep exploded")
		}
		return 0, nil
	}))
	s.Start()
	defer s.Stop()

	// a second tick happening at all proves the panic was contained
	assert.Eventually(t, func() bool { return after.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := New(nil)
	ctxCh := make(chan context.Context, 1)
	require.NoError(t, s.Every(time.Second, "watch-ctx", func(ctx context.Context) (int, error) {
		select {
		case ctxCh <- ctx:
		default:
		}
		return 0, nil
	}))
	s.Start()

	var jobCtx context.Context
	select {
	case jobCtx = <-ctxCh:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	s.Stop()
	select {
	case <-jobCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled on Stop")
	}
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := New(nil)
	err := s.Every(0, "bad", func(context.Context) (int, error) { return 0, nil })
	assert.Error(t, err)
}
