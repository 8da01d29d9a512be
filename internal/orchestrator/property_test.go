package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"outfitswap/internal/domain"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/pubsub"
)

const (
	outcomeOK = iota
	outcomeError
	outcomeEmpty
	outcomePanic
)

func TestBatchProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := rapid.SliceOfN(rapid.IntRange(outcomeOK, outcomePanic), 1, 8).Draw(t, "outcomes")

		ids := make([]string, len(outcomes))
		plan := make(map[string]int, len(outcomes))
		for i, outcome := range outcomes {
			ids[i] = fmt.Sprintf("o%d", i)
			plan[ids[i]] = outcome
		}

		var calls []string
		editor := image.EditorFunc(func(ctx context.Context, base, outfit image.Source) (*image.Result, error) {
			id := string(outfit.Data)
			calls = append(calls, id)
			switch plan[id] {
			case outcomeError:
				return nil, errors.New("failed " + id)
			case outcomeEmpty:
				return &image.Result{}, nil
			case outcomePanic:
				panic(id)
			}
			return &image.Result{Reference: "data:image/png;base64," + id}, nil
		})

		orch := New(editor, Options{FeedBuffer: 4 * len(outcomes)})
		defer orch.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		feed := orch.Subscribe(ctx)

		require.NoError(t, orch.Run(context.Background(), asset("base"), outfits(ids...)))
		require.Equal(t, ids, calls, "every outfit is attempted once, in order")

		var events []pubsub.Event[BatchState]
		for ev := range feed {
			events = append(events, ev)
			if ev.Type == pubsub.BatchFinished {
				break
			}
		}
		require.Len(t, events, 2+2*len(ids))

		previous := make([]domain.JobStatus, len(ids))
		for i := range previous {
			previous[i] = domain.JobStatusPending
		}
		for _, ev := range events {
			state := ev.Payload
			require.Len(t, state.Jobs, len(ids))
			processing := 0
			for i, job := range state.Jobs {
				require.Equal(t, domain.JobIDFor(ids[i]), job.ID)
				if job.Status == domain.JobStatusProcessing {
					processing++
				}
				if job.Status != previous[i] {
					require.True(t, previous[i].CanTransition(job.Status), "%s: %s -> %s", job.ID, previous[i], job.Status)
				}
				previous[i] = job.Status
			}
			require.LessOrEqual(t, processing, 1)
			if ev.Type != pubsub.BatchFinished {
				require.True(t, state.Processing)
			}
		}

		final := orch.State()
		require.False(t, final.Processing)
		lastFailure := ""
		for i, job := range final.Jobs {
			require.True(t, job.Status.Terminal())
			if plan[ids[i]] == outcomeOK {
				require.Equal(t, domain.JobStatusCompleted, job.Status)
				require.NotEmpty(t, job.ResultRef)
				continue
			}
			require.Equal(t, domain.JobStatusFailed, job.Status)
			require.NotEmpty(t, job.ErrorMessage)
			lastFailure = job.ErrorMessage
		}
		if lastFailure == "" {
			require.Empty(t, final.Error)
		} else {
			require.Equal(t, fmt.Sprintf(batchErrorFormat, lastFailure), final.Error)
		}
	})
}
