package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/reconcile"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.RetryDelay = 10 * time.Millisecond

	client, err := NewClient(filepath.Join(t.TempDir(), "shelfsync.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestQueuePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "shelfsync-tasks.db"), QueuePath(filepath.Join("data", "shelfsync.db")))
	assert.Equal(t, "ext-tasks", QueuePath("ext"))
}

func TestNewClient(t *testing.T) {
	client := newTestClient(t)

	_, err := os.Stat(client.Path())
	assert.NoError(t, err, "tasks database should be created")
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

func TestClientStop_NotStarted(t *testing.T) {
	client := newTestClient(t)
	assert.True(t, client.Stop(context.Background()))
}

type fakeRunner struct {
	calls     atomic.Int32
	failFirst int32
	last      atomic.Value
}

func (f *fakeRunner) Run(_ context.Context, d reconcile.Direction, p reconcile.Policy) (*reconcile.PassResult, error) {
	n := f.calls.Add(1)
	f.last.Store([2]string{string(d), string(p)})
	if n <= f.failFirst {
		return nil, entities.ErrBusy
	}
	return &reconcile.PassResult{Direction: d, Policy: p}, nil
}

func TestReconcileQueue_RunsWithDefaults(t *testing.T) {
	client := newTestClient(t)
	runner := &fakeRunner{}
	client.Register(NewReconcileQueue(runner, ReconcileTask{
		Direction: string(reconcile.Bidirectional),
		Policy:    string(reconcile.UseLatestModified),
	}, client.Config()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	_, err := client.Enqueue(ReconcileTask{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, [2]string{"bidirectional", "use_latest_modified"}, runner.last.Load())
}

func TestReconcileQueue_RetriesWhenBusy(t *testing.T) {
	client := newTestClient(t)
	runner := &fakeRunner{failFirst: 1}
	client.Register(NewReconcileQueue(runner, ReconcileTask{
		Direction: string(reconcile.CatalogToExtension),
		Policy:    string(reconcile.KeepSource),
	}, client.Config()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	_, err := client.Enqueue(ReconcileTask{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, 10*time.Second, 20*time.Millisecond)
}

func TestReconcileProcessor_BadDirection(t *testing.T) {
	proc := ReconcileProcessor(&fakeRunner{}, ReconcileTask{Policy: "keep_source"})
	err := proc(context.Background(), ReconcileTask{Direction: "sideways"})
	require.Error(t, err)
}

func TestReconcileProcessor_WrapsRunError(t *testing.T) {
	runner := &fakeRunner{failFirst: 5}
	proc := ReconcileProcessor(runner, ReconcileTask{Direction: "bidirectional", Policy: "keep_source"})
	err := proc(context.Background(), ReconcileTask{})
	assert.True(t, errors.Is(err, entities.ErrBusy))
}

func TestTaskConfigs(t *testing.T) {
	rc := ReconcileTask{}.Config()
	assert.Equal(t, ReconcileQueue, rc.Name)
	assert.Equal(t, 3, rc.MaxAttempts)
	assert.Equal(t, 30*time.Second, rc.Backoff)
	assert.NotNil(t, rc.Retention)

	ec := EnrichCoverTask{BookID: 1}.Config()
	assert.Equal(t, "enrich_cover", ec.Name)
	assert.Equal(t, 2*time.Minute, ec.Timeout)

	ac := EnrichAllCoversTask{}.Config()
	assert.Equal(t, "enrich_all_covers", ac.Name)
	assert.Equal(t, 1, ac.MaxAttempts)
}

func TestQueues_UseTheirClientsSettings(t *testing.T) {
	fast := DefaultConfig()
	fast.MaxRetries = 7
	fast.RetryDelay = time.Millisecond
	fast.RetentionDuration = time.Minute
	slow := DefaultConfig()

	fastQueue := NewReconcileQueue(&fakeRunner{}, ReconcileTask{}, fast).Config()
	slowQueue := NewReconcileQueue(&fakeRunner{}, ReconcileTask{}, slow).Config()
	assert.Equal(t, ReconcileQueue, fastQueue.Name)
	assert.Equal(t, 7, fastQueue.MaxAttempts)
	assert.Equal(t, time.Millisecond, fastQueue.Backoff)
	assert.Equal(t, time.Minute, fastQueue.Retention.Duration)
	assert.Equal(t, 3, slowQueue.MaxAttempts)
	assert.Equal(t, 30*time.Second, slowQueue.Backoff)

	// Building a queue leaves the task's own config untouched.
	assert.Equal(t, 3, ReconcileTask{}.Config().MaxAttempts)

	cover := NewEnrichCoverQueue(nil, fast).Config()
	assert.Equal(t, "enrich_cover", cover.Name)
	assert.Equal(t, 7, cover.MaxAttempts)
	all := NewEnrichAllCoversQueue(nil, fast).Config()
	assert.Equal(t, 1, all.MaxAttempts)
	assert.Equal(t, time.Minute, all.Retention.Duration)

	partial := NewReconcileQueue(&fakeRunner{}, ReconcileTask{}, Config{MaxRetries: 5}).Config()
	assert.Equal(t, 5, partial.MaxAttempts)
	assert.Equal(t, 10*time.Minute, partial.Timeout)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)

	filled := Config{Workers: 4}.withDefaults()
	assert.Equal(t, 4, filled.Workers)
	assert.Equal(t, time.Hour, filled.CleanupInterval)
}

var _ backlite.Task = ReconcileTask{}
