package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/shelfsync/internal/entities"
)

type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	err     error
}

func (r *blockingRunner) Run(ctx context.Context, _ Direction, _ Policy) (*PassResult, error) {
	r.calls.Add(1)
	r.once.Do(func() {
		close(r.started)
		<-r.release
	})
	return &PassResult{}, r.err
}

func TestAsyncTrigger_CoalescesRequests(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	trigger := NewAsyncTrigger(runner, Bidirectional, UseLatestModified)
	defer trigger.Stop()

	trigger.Trigger()
	<-runner.started
	for i := 0; i < 5; i++ {
		trigger.Trigger()
	}
	close(runner.release)
	trigger.Wait()

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestAsyncTrigger_BusyIsNotFatal(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{}), err: entities.ErrBusy}
	close(runner.release)
	trigger := NewAsyncTrigger(runner, CatalogToExtension, UseLatestModified)

	trigger.Trigger()
	trigger.Wait()
	trigger.Trigger()
	trigger.Wait()
	trigger.Stop()

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestAsyncTrigger_IgnoredAfterStop(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	close(runner.release)
	trigger := NewAsyncTrigger(runner, Bidirectional, UseLatestModified)
	trigger.Stop()

	trigger.Trigger()
	trigger.Wait()
	assert.Zero(t, runner.calls.Load())
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	made, err := withRetry(context.Background(), 5, 0, func() error {
		return entities.ErrStoreUnavailable
	}, nil)
	assert.ErrorIs(t, err, entities.ErrStoreUnavailable)
	assert.Equal(t, 1, made)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	retries := 0
	made, err := withRetry(context.Background(), 3, 0, func() error {
		calls++
		if calls < 3 {
			return assert.AnError
		}
		return nil
	}, func(error) { retries++ })
	assert.NoError(t, err)
	assert.Equal(t, 3, made)
	assert.Equal(t, 2, retries)
}
