package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func renderUsers(s State[[]user]) string {
	return Match(s, Cases[[]user, string]{
		Idle:    func() string { return "" },
		Loading: func([]user, bool) string { return "spinner" },
		Succeeded: func(users []user) string {
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Name
			}
			return "users: " + strings.Join(names, ", ")
		},
		Failed: func(err error, previous []user, hasPrevious bool) string {
			if hasPrevious {
				return fmt.Sprintf("error: %v (%d cached)", err, len(previous))
			}
			return "error: " + err.Error()
		},
	})
}

func TestMatchDispatchesEachStatus(t *testing.T) {
	ana := []user{{ID: 1, Name: "Ana"}}
	boom := errors.New("boom")

	tests := []struct {
		name  string
		state State[[]user]
		want  string
	}{
		{"idle", Idle[[]user]{}, ""},
		{"nil", nil, ""},
		{"loading", Loading[[]user]{}, "spinner"},
		{"loading with previous", Loading[[]user]{Previous: ana, HasPrevious: true}, "spinner"},
		{"succeeded", Succeeded[[]user]{Data: ana}, "users: Ana"},
		{"failed", Failed[[]user]{Err: boom}, "error: boom"},
		{"failed with previous", Failed[[]user]{Err: boom, Previous: ana, HasPrevious: true}, "error: boom (1 cached)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderUsers(tt.state))
		})
	}
}

func TestMatchPanicsOnMissingCase(t *testing.T) {
	assert.Panics(t, func() {
		Match(Succeeded[int]{Data: 1}, Cases[int, string]{
			Idle:      func() string { return "" },
			Loading:   func(int, bool) string { return "" },
			Succeeded: func(int) string { return "" },
		})
	})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestAccessors(t *testing.T) {
	v, ok := DataOf[int](Succeeded[int]{Data: 3})
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = DataOf[int](Failed[int]{Err: ErrUnknown, Previous: 3, HasPrevious: true})
	assert.False(t, ok)

	assert.ErrorIs(t, ErrOf[int](Failed[int]{Err: ErrTimeout}), ErrTimeout)
	assert.NoError(t, ErrOf[int](Loading[int]{}))

	prev, ok := PreviousOf[int](Failed[int]{Err: ErrUnknown, Previous: 3, HasPrevious: true})
	assert.True(t, ok)
	assert.Equal(t, 3, prev)

	_, ok = PreviousOf[int](Idle[int]{})
	assert.False(t, ok)
}

func TestConsumerRendersDataAfterFetch(t *testing.T) {
	c := New[[]user](t.Context())
	var frames []string
	c.Subscribe(func(s State[[]user]) { frames = append(frames, renderUsers(s)) })

	state := c.RunSync(func(_ context.Context) ([]user, error) {
		return []user{{ID: 1, Name: "Ana"}}, nil
	})

	assert.Equal(t, "users: Ana", renderUsers(state))
	assert.Equal(t, []string{"spinner", "users: Ana"}, frames)
	for _, f := range frames {
		assert.NotContains(t, f, "error")
	}
}

func TestDropReasonString(t *testing.T) {
	assert.Equal(t, "superseded", DropSuperseded.String())
	assert.Equal(t, "cancelled", DropCancelled.String())
	assert.Equal(t, "unknown", DropReason(42).String())
	assert.Equal(t, "retain", RetainData.String())
	assert.Equal(t, "clear", ClearData.String())
}

func TestAccessorsInferTypeFromContainerState(t *testing.T) {
	c := New[[]user](context.Background())
	defer c.Close()

	tok, _ := c.Start()
	c.Succeed(tok, []user{{ID: 1, Name: "Ana"}})

	users, ok := DataOf(c.Get())
	assert.True(t, ok)
	assert.Equal(t, "Ana", users[0].Name)
	assert.NoError(t, ErrOf(c.Get()))

	tok, _ = c.Start()
	previous, ok := PreviousOf(c.Get())
	assert.True(t, ok)
	assert.Len(t, previous, 1)

	c.Fail(tok, errors.New("offline"))
	assert.EqualError(t, ErrOf(c.Get()), "offline")
	previous, ok = PreviousOf(c.Get())
	assert.True(t, ok)
	assert.Equal(t, 1, previous[0].ID)
}
