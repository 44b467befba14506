package reconcile

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// Runner is what a trigger needs from the engine.
type Runner interface {
	Run(ctx context.Context, direction Direction, policy Policy) (*PassResult, error)
}

// AsyncTrigger runs passes in the background after writes. Requests arriving
// while a pass is running collapse into one follow-up pass.
type AsyncTrigger struct {
	runner    Runner
	direction Direction
	policy    Policy

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewAsyncTrigger(runner Runner, direction Direction, policy Policy) *AsyncTrigger {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncTrigger{runner: runner, direction: direction, policy: policy, ctx: ctx, cancel: cancel}
}

// Trigger requests a pass and returns immediately.
func (t *AsyncTrigger) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	if t.running {
		t.pending = true
		return
	}
	t.running = true
	t.wg.Add(1)
	go t.loop()
}

func (t *AsyncTrigger) loop() {
	defer t.wg.Done()
	for {
		_, err := t.runner.Run(t.ctx, t.direction, t.policy)
		switch {
		case errors.Is(err, entities.ErrBusy):
			log.Printf("Reconcile trigger: store busy, skipping")
		case err != nil && t.ctx.Err() == nil:
			log.Printf("Reconcile trigger: pass failed: %v", err)
		}

		t.mu.Lock()
		if !t.pending || t.ctx.Err() != nil {
			t.running = false
			t.pending = false
			t.mu.Unlock()
			return
		}
		t.pending = false
		t.mu.Unlock()
	}
}

// Wait blocks until no triggered pass is running.
func (t *AsyncTrigger) Wait() {
	t.wg.Wait()
}

// Stop cancels a running pass and waits for it to return.
func (t *AsyncTrigger) Stop() {
	t.cancel()
	t.wg.Wait()
}
