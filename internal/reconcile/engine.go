// Package reconcile keeps the catalog, the file library and the extension store
// aligned.
//
// A pass enumerates one store pair, partitions keys into only-A, only-B and
// in-both, creates missing records on the target side, resolves timestamp
// conflicts with the configured policy and, for catalog -> extension, removes
// extension rows whose book no longer exists in the catalog.
//
// # Store pairs
//
//	catalog <-> library    keyed by path, compares the cover flag
//	catalog <-> extension  keyed by book id, compares the mirrored fields
//
// A bidirectional pass runs the library pair in both directions first and the
// extension pair second, so catalog books created from library directories get
// their extension rows in the same pass.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/cache"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/database/extensions"
	"github.com/mrlokans/shelfsync/internal/database/syncstate"
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
	"github.com/mrlokans/shelfsync/internal/metrics"
)

type Options struct {
	MaxAttempts int           // total attempts per write, including the first
	BackoffStep time.Duration // attempt n waits n*BackoffStep before the next
	MaxErrors   int           // error entries kept per pass
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BackoffStep < 0 {
		o.BackoffStep = 0
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 100
	}
	return o
}

// ProgressReporter receives live progress for the running pass.
type ProgressReporter interface {
	StartSync(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteSync(succeeded bool, errorMsg string) error
}

type Engine struct {
	manager *database.Manager
	library *library.Library
	cache   cache.Cache
	metrics *metrics.Metrics
	opts    Options

	state atomic.Value // State

	// beforeWrite runs ahead of every store write; tests use it to inject failures.
	beforeWrite func(side, key string) error
}

func NewEngine(manager *database.Manager, lib *library.Library, opts Options) *Engine {
	e := &Engine{manager: manager, library: lib, opts: opts.withDefaults()}
	e.state.Store(StateIdle)
	return e
}

// SetCache sets the cache invalidated after a pass that changed anything (optional).
func (e *Engine) SetCache(c cache.Cache) {
	e.cache = c
}

// SetMetrics sets the metrics recorder (optional).
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

func (e *Engine) State() State {
	return e.state.Load().(State)
}

func (e *Engine) setState(s State) {
	e.state.Store(s)
}

// pair is one store pair with its mapping and the directions records may flow.
type pair struct {
	name      string
	a, b      side // a is always the catalog
	mapping   Mapping
	createInA bool
	createInB bool
	// aIsSource decides which side plays source for the policy.
	aIsSource bool
	// normalize pins fields one side owns physically.
	normalize func(resolved, a, b Record) Record
}

// Run executes one reconciliation pass. It fails with entities.ErrBusy when a
// repoint or another pass holds the store guard, and with
// entities.ErrStoreUnavailable when a store the direction needs is down. Per-item
// failures are recorded in the result and never stop the pass.
func (e *Engine) Run(ctx context.Context, direction Direction, policy Policy) (*PassResult, error) {
	res := newPassResult(direction, policy, e.opts.MaxErrors, time.Now().UTC())

	release, err := e.manager.BeginPass()
	if err != nil {
		return nil, err
	}
	defer release()
	defer e.setState(StateIdle)

	err = e.run(ctx, res)
	res.FinishedAt = time.Now().UTC()
	e.setState(StateDone)

	e.record(res, err)
	if res.Changed() {
		e.invalidateCache(ctx)
	}
	return res, err
}

func (e *Engine) run(ctx context.Context, res *PassResult) error {
	catDB, err := e.manager.Catalog()
	if err != nil {
		res.addError(ErrorUnavailable, err.Error(), sideCatalog)
		return err
	}

	needsExtension := res.Direction == CatalogToExtension || res.Direction == Bidirectional
	extDB, extErr := e.manager.Extension()
	if needsExtension && extErr != nil {
		res.addError(ErrorUnavailable, extErr.Error(), sideExtension)
		return extErr
	}

	var progress ProgressReporter
	if extDB != nil {
		repo := syncstate.NewRepository(extDB, entities.SyncTypeReconcile)
		progress = repo
		e.replayIntents(ctx, res, catDB, extDB, repo)
	}

	log.Printf("Reconcile: starting %s pass (policy %s)", res.Direction, res.Policy)

	pairs := e.pairsFor(res.Direction, catDB, extDB)
	for _, p := range pairs {
		if err := e.runPair(ctx, p, res, progress); err != nil {
			res.addError(ErrorSystem, err.Error(), p.name)
			if progress != nil {
				_ = progress.CompleteSync(false, err.Error())
			}
			return err
		}
	}
	if progress != nil {
		_ = progress.CompleteSync(res.Failed == 0, "")
	}
	return nil
}

func (e *Engine) pairsFor(d Direction, catDB, extDB *gorm.DB) []pair {
	libraryPair := pair{
		name:      sideLibrary,
		a:         &catalogByPath{db: catDB, lib: e.library},
		b:         &librarySide{lib: e.library},
		mapping:   LibraryMapping,
		aIsSource: d != LibraryToCatalog,
		// cover bytes live only in the library, so the flag follows the files
		normalize: func(resolved, _, lib Record) Record {
			resolved.Fields[FieldHasCover] = lib.Fields[FieldHasCover]
			return resolved
		},
	}
	extensionPair := pair{
		name:      sideExtension,
		a:         &catalogByID{db: catDB, lib: e.library},
		b:         &extensionSide{db: extDB},
		mapping:   ExtensionMapping,
		createInB: true,
		aIsSource: true,
		normalize: func(resolved, cat, _ Record) Record {
			resolved.Fields[FieldHasCover] = cat.Fields[FieldHasCover]
			return resolved
		},
	}

	switch d {
	case CatalogToLibrary:
		libraryPair.createInB = true
		return []pair{libraryPair}
	case LibraryToCatalog:
		libraryPair.createInA = true
		return []pair{libraryPair}
	case CatalogToExtension:
		return []pair{extensionPair}
	default:
		libraryPair.createInA = true
		libraryPair.createInB = true
		return []pair{libraryPair, extensionPair}
	}
}

func (e *Engine) runPair(ctx context.Context, p pair, res *PassResult, progress ProgressReporter) error {
	e.setState(StateEnumerating)
	aRecs, err := p.a.records(ctx)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", p.a.name(), err)
	}
	bRecs, err := p.b.records(ctx)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", p.b.name(), err)
	}

	keys := unionKeys(aRecs, bRecs)
	var orphans []string
	if progress != nil {
		_ = progress.StartSync(len(keys))
	}

	e.setState(StateProcessing)
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		ra, inA := aRecs[key]
		rb, inB := bRecs[key]

		switch {
		case inA && inB:
			e.compare(ctx, p, ra, rb, res)
		case inA:
			e.createMissing(ctx, p, p.b, p.createInB, ra, res)
		case p.name == sideExtension:
			orphans = append(orphans, key)
		default:
			e.createMissing(ctx, p, p.a, p.createInA, rb, res)
		}

		if progress != nil {
			_ = progress.UpdateProgress(i+1, res.Synced, res.Failed, res.Skipped, p.name+" "+key)
		}
	}

	if len(orphans) > 0 {
		e.setState(StateDeleting)
		e.deleteOrphans(ctx, p.b.(*extensionSide).db, orphans, res)
	}
	return nil
}

func (e *Engine) createMissing(ctx context.Context, p pair, target side, allowed bool, from Record, res *PassResult) {
	if !allowed {
		res.Skipped++
		return
	}
	if err := e.attempt(ctx, target.name(), from.Key, func() error { return target.create(ctx, from) }); err != nil {
		res.Failed++
		res.addError(classify(err), err.Error(), fmt.Sprintf("create %s %s", target.name(), from.Key))
		return
	}
	res.Synced++
}

// compare handles a key present on both sides. Equal timestamps mean nothing
// to do; anything else is a conflict resolved by policy and written to every
// side that differs from the resolution.
func (e *Engine) compare(ctx context.Context, p pair, ra, rb Record, res *PassResult) {
	if SameStamp(ra.LastModified, rb.LastModified) {
		res.Skipped++
		return
	}
	res.Conflicted++

	src, dst := ra, rb
	if !p.aIsSource {
		src, dst = rb, ra
	}
	resolved, err := p.mapping.Resolve(res.Policy, src, dst)
	if err == nil {
		if p.normalize != nil {
			resolved = p.normalize(resolved, ra, rb)
		}
		err = p.mapping.Validate(&resolved)
	}
	if err != nil {
		res.Failed++
		res.addError(classify(err), err.Error(), p.name+" "+ra.Key)
		return
	}

	failed := false
	for _, target := range []struct {
		s   side
		own Record
	}{{p.a, ra}, {p.b, rb}} {
		if p.mapping.Equal(target.own, resolved) && SameStamp(target.own.LastModified, resolved.LastModified) {
			continue
		}
		s, own := target.s, target.own
		if err := e.attempt(ctx, s.name(), own.Key, func() error { return s.write(ctx, own, resolved) }); err != nil {
			failed = true
			res.addError(classify(err), err.Error(), fmt.Sprintf("write %s %s", s.name(), own.Key))
		}
	}
	if failed {
		res.Failed++
		return
	}
	res.Synced++
}

// deleteOrphans removes extension rows whose book is gone from the catalog,
// one transaction per book.
func (e *Engine) deleteOrphans(ctx context.Context, extDB *gorm.DB, keys []string, res *PassResult) {
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		id, err := parseIDKey(key)
		if err != nil {
			res.Failed++
			res.addError(ErrorValidation, err.Error(), "delete extension "+key)
			continue
		}
		err = e.attempt(ctx, sideExtension, key, func() error {
			return extDB.Transaction(func(tx *gorm.DB) error {
				_, err := extensions.NewRepository(tx).DeleteCascade(id)
				return err
			})
		})
		if err != nil {
			res.Failed++
			res.addError(classify(err), err.Error(), "delete extension "+key)
			continue
		}
		res.Deleted++
	}
}

func (e *Engine) attempt(ctx context.Context, sideName, key string, op func() error) error {
	_, err := withRetry(ctx, e.opts.MaxAttempts, e.opts.BackoffStep, func() error {
		if e.beforeWrite != nil {
			if err := e.beforeWrite(sideName, key); err != nil {
				return err
			}
		}
		return op()
	}, func(err error) {
		e.metrics.Retry()
		log.Printf("Reconcile: retrying %s %s: %v", sideName, key, err)
	})
	return err
}

func (e *Engine) record(res *PassResult, err error) {
	took := res.FinishedAt.Sub(res.StartedAt)
	d := string(res.Direction)
	e.metrics.ReconcileItem(d, "synced", res.Synced)
	e.metrics.ReconcileItem(d, "failed", res.Failed)
	e.metrics.ReconcileItem(d, "conflicted", res.Conflicted)
	e.metrics.ReconcileItem(d, "skipped", res.Skipped)
	e.metrics.ReconcileItem(d, "deleted", res.Deleted)
	e.metrics.ReconcilePass(d, err, took)

	if err != nil {
		log.Printf("Reconcile: %s pass failed after %s: %v", res.Direction, took.Round(time.Millisecond), err)
	} else {
		log.Printf("Reconcile: %s pass done in %s: synced=%d conflicted=%d skipped=%d failed=%d deleted=%d",
			res.Direction, took.Round(time.Millisecond), res.Synced, res.Conflicted, res.Skipped, res.Failed, res.Deleted)
	}

	extDB, dbErr := e.manager.Extension()
	if dbErr != nil {
		return
	}
	errs, _ := json.Marshal(res.Errors)
	run := entities.SyncRun{
		Direction:       string(res.Direction),
		Policy:          string(res.Policy),
		Synced:          res.Synced,
		Failed:          res.Failed,
		Conflicted:      res.Conflicted,
		Skipped:         res.Skipped,
		Deleted:         res.Deleted,
		IntentsReplayed: res.IntentsReplayed,
		Errors:          string(errs),
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
	if err := syncstate.NewRepository(extDB, entities.SyncTypeReconcile).SaveRun(&run); err != nil {
		log.Printf("Reconcile: failed to persist run: %v", err)
	}
}

func (e *Engine) invalidateCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAll(ctx, cache.NamespaceCatalog); err != nil {
		log.Printf("Reconcile: cache invalidation failed: %v", err)
	}
	if err := e.cache.InvalidatePrefix(ctx, "state:"); err != nil {
		log.Printf("Reconcile: cache invalidation failed: %v", err)
	}
}

// SyncStatus classifies books across the catalog and extension stores. It
// writes nothing and does not take the pass guard.
func (e *Engine) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	catDB, err := e.manager.Catalog()
	if err != nil {
		return nil, err
	}
	extDB, err := e.manager.Extension()
	if err != nil {
		return nil, err
	}
	cat, err := (&catalogByID{db: catDB}).records(ctx)
	if err != nil {
		return nil, err
	}
	ext, err := (&extensionSide{db: extDB}).records(ctx)
	if err != nil {
		return nil, err
	}

	status := &SyncStatus{CatalogOnly: []int64{}, ExtensionOnly: []int64{}, Conflicted: []int64{}}
	for _, key := range unionKeys(cat, ext) {
		c, inC := cat[key]
		x, inX := ext[key]
		switch {
		case inC && inX:
			if SameStamp(c.LastModified, x.LastModified) {
				status.InSync++
			} else {
				status.Conflicted = append(status.Conflicted, c.BookID)
			}
		case inC:
			status.CatalogOnly = append(status.CatalogOnly, c.BookID)
		default:
			status.ExtensionOnly = append(status.ExtensionOnly, x.BookID)
		}
	}
	return status, nil
}

// unionKeys returns every key of both maps in a stable order: numeric keys
// numerically, everything else lexically.
func unionKeys(a, b map[string]Record) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]Record{a, b} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, ei := parseIDKey(keys[i])
		nj, ej := parseIDKey(keys[j])
		if ei == nil && ej == nil {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}
