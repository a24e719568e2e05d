package engine

import (
	"context"

	"github.com/patrickwarner/eligibleads/internal/logic/eligible"
	"github.com/patrickwarner/eligibleads/internal/models"
)

// servingState is owned by a queue goroutine and only touched by its jobs.
type servingState struct {
	lastServed      *models.CreativeAd
	seenAds         map[string]bool
	seenAdvertisers map[string]bool
}

// params snapshots the state for one pipeline run.
func (s *servingState) params(dimensions string) eligible.Params {
	return eligible.Params{
		Dimensions:      dimensions,
		LastServed:      s.lastServed,
		SeenAds:         copyMap(s.seenAds),
		SeenAdvertisers: copyMap(s.seenAdvertisers),
	}
}

func copyMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type job func(*servingState)

// queue runs jobs one at a time against its servingState.
type queue struct {
	jobs   chan job
	closed <-chan struct{}
	state  *servingState
}

func newQueue(closed <-chan struct{}) *queue {
	return &queue{
		jobs:   make(chan job),
		closed: closed,
		state: &servingState{
			seenAds:         make(map[string]bool),
			seenAdvertisers: make(map[string]bool),
		},
	}
}

func (q *queue) run() {
	for {
		select {
		case j := <-q.jobs:
			j(q.state)
		case <-q.closed:
			return
		}
	}
}

// submit hands fn to the queue and waits for it to finish. Cancelling ctx
// only aborts the wait for a free queue slot.
func (q *queue) submit(ctx context.Context, fn job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-q.closed:
		return ErrEngineClosed
	default:
	}

	done := make(chan struct{})
	wrapped := func(s *servingState) {
		defer close(done)
		fn(s)
	}
	select {
	case q.jobs <- wrapped:
	case <-q.closed:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once handed off the job owns the outcome; fn sees ctx itself.
	<-done
	return nil
}
