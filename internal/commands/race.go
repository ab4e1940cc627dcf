package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/frontend-bootcamp/reqstate/internal/appctx"
	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// RaceResult reports which of two overlapping requests won.
type RaceResult struct {
	WinnerPage  int      `json:"winner_page"`
	Version     uint64   `json:"version"`
	Transitions []string `json:"transitions"`
	Dropped     []string `json:"dropped"`
}

// dropRecorder collects drop events. late is signalled when a result
// arrives for a request that had already ended.
type dropRecorder struct {
	request.NopHooks
	mu    sync.Mutex
	drops []string
	late  chan struct{}
}

func newDropRecorder() *dropRecorder {
	return &dropRecorder{late: make(chan struct{}, 1)}
}

func (r *dropRecorder) OnDrop(_ context.Context, info request.Info, reason request.DropReason, _ time.Duration) {
	r.mu.Lock()
	r.drops = append(r.drops, fmt.Sprintf("#%d %s", info.Token, reason))
	r.mu.Unlock()
	if !reason.EndsRequest() {
		select {
		case r.late <- struct{}{}:
		default:
		}
	}
}

func (r *dropRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.drops...)
}

// NewRaceCmd creates the race command.
func NewRaceCmd() *cobra.Command {
	var slow, fast time.Duration

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Show that the latest request wins",
		Long: `Start a slow request for posts page 1, then a fast one for page 2.

The slow request ignores cancellation and finishes last; its result is
dropped and the container shows page 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appctx.FromContext(cmd.Context())

			if slow <= fast {
				return output.ErrUsageHint("--slow must be longer than --fast", "The race needs the first request to finish last")
			}

			rec := newDropRecorder()
			opts := append(app.RequestOptions("race"),
				request.WithHooks(request.MultiHooks{app.RequestHooks(), rec}))
			c := request.New[mockapi.PostsPage](cmd.Context(), opts...)
			defer c.Close()

			var (
				mu          sync.Mutex
				transitions []string
			)
			settledCh := make(chan struct{}, 1)
			c.Subscribe(func(s request.State[mockapi.PostsPage]) {
				mu.Lock()
				transitions = append(transitions, describeTransition(s))
				mu.Unlock()
				if s.Status() != request.StatusLoading {
					select {
					case settledCh <- struct{}{}:
					default:
					}
				}
			})

			c.Run(func(ctx context.Context) (mockapi.PostsPage, error) {
				// A backend that keeps working after the client gave up.
				if err := sleep(cmd.Context(), slow); err != nil {
					return mockapi.PostsPage{}, err
				}
				return app.Store.ListPosts(context.WithoutCancel(ctx), 1)
			})
			c.Run(func(ctx context.Context) (mockapi.PostsPage, error) {
				if err := sleep(ctx, fast); err != nil {
					return mockapi.PostsPage{}, err
				}
				return app.Store.ListPosts(ctx, 2)
			})

			select {
			case <-settledCh:
			case <-cmd.Context().Done():
				return output.ErrCancelled(cmd.Context().Err())
			}
			select {
			case <-rec.late:
			case <-cmd.Context().Done():
				return output.ErrCancelled(cmd.Context().Err())
			}

			page, err := settled(c.Get())
			if err != nil {
				return err
			}

			mu.Lock()
			result := RaceResult{
				WinnerPage:  page.Page,
				Version:     uint64(c.Version()),
				Transitions: append([]string(nil), transitions...),
				Dropped:     rec.list(),
			}
			mu.Unlock()

			return app.OK(result,
				output.WithSummary(fmt.Sprintf("Page %d won; %d events dropped", result.WinnerPage, len(result.Dropped))),
			)
		},
	}

	cmd.Flags().DurationVar(&slow, "slow", 1500*time.Millisecond, "Delay before the first request")
	cmd.Flags().DurationVar(&fast, "fast", 200*time.Millisecond, "Delay before the second request")
	return cmd
}

func describeTransition(s request.State[mockapi.PostsPage]) string {
	return request.Match(s, request.Cases[mockapi.PostsPage, string]{
		Idle: func() string { return "idle" },
		Loading: func(mockapi.PostsPage, bool) string {
			return "loading"
		},
		Succeeded: func(p mockapi.PostsPage) string {
			return fmt.Sprintf("succeeded (page %d)", p.Page)
		},
		Failed: func(err error, _ mockapi.PostsPage, _ bool) string {
			return "failed: " + err.Error()
		},
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
