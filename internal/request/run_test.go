package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSucceeds(t *testing.T) {
	c := New[string](context.Background())
	tok := c.Run(func(context.Context) (string, error) { return "ok", nil })
	require.Equal(t, Token(1), tok)

	require.Eventually(t, func() bool {
		return c.Get().Status() == StatusSucceeded
	}, time.Second, time.Millisecond)
	assert.Equal(t, Succeeded[string]{Data: "ok"}, c.Get())
}

func TestRunFails(t *testing.T) {
	c := New[string](context.Background())
	boom := errors.New("boom")
	state := c.RunSync(func(context.Context) (string, error) { return "", boom })
	assert.Equal(t, Failed[string]{Err: boom}, state)
}

func TestRunOutOfOrderCompletion(t *testing.T) {
	h := &recordingHooks{}
	c := New[string](context.Background(), WithHooks(h))

	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	// Neither op watches ctx, so a late result really arrives late.
	tok1 := c.Run(func(context.Context) (string, error) {
		<-releaseA
		return "A", nil
	})
	tok2 := c.Run(func(context.Context) (string, error) {
		<-releaseB
		return "B", nil
	})
	require.Less(t, tok1, tok2)

	close(releaseB)
	require.Eventually(t, func() bool {
		return c.Get().Status() == StatusSucceeded
	}, time.Second, time.Millisecond)

	close(releaseA)
	require.Eventually(t, func() bool {
		for _, r := range h.dropped() {
			if r == DropCancelled {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	assert.Equal(t, Succeeded[string]{Data: "B"}, c.Get())
}

func TestRunCancelledErrorIsNotAFailure(t *testing.T) {
	c := New[string](context.Background())
	entered := make(chan struct{})
	done := make(chan struct{})

	c.Run(func(ctx context.Context) (string, error) {
		defer close(done)
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-entered
	c.Reset()
	<-done

	assert.Equal(t, Idle[string]{}, c.Get())
}

func TestRunTimeout(t *testing.T) {
	c := New[string](context.Background(), WithTimeout(20*time.Millisecond))
	c.RunSync(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	// The deadline may be observed by the op or by the timer; both fail
	// the request with ErrTimeout.
	require.Eventually(t, func() bool {
		return c.Get().Status() == StatusFailed
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, ErrOf(c.Get()), ErrTimeout)
}

func TestRunTimeoutDoesNotOverrideResult(t *testing.T) {
	c := New[int](context.Background(), WithTimeout(time.Second))
	state := c.RunSync(func(context.Context) (int, error) { return 5, nil })
	assert.Equal(t, Succeeded[int]{Data: 5}, state)
}

func TestRunOnClosedContainer(t *testing.T) {
	c := New[int](context.Background())
	c.Close()

	called := false
	tok := c.Run(func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.Equal(t, Token(0), tok)
	assert.Equal(t, Idle[int]{}, c.RunSync(func(context.Context) (int, error) { return 1, nil }))
	assert.False(t, called)
}
