package reconcile

import (
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// Direction selects which store pair a pass reconciles and which way records
// are created.
type Direction string

const (
	CatalogToLibrary   Direction = "catalog_to_library"
	LibraryToCatalog   Direction = "library_to_catalog"
	CatalogToExtension Direction = "catalog_to_extension"
	Bidirectional      Direction = "bidirectional"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case CatalogToLibrary, LibraryToCatalog, CatalogToExtension, Bidirectional:
		return d, nil
	case "":
		return Bidirectional, nil
	}
	return "", entities.NewValidationError("direction", "unknown direction %q", s)
}

// Policy decides the winner when both sides hold a record with different
// modification times.
type Policy string

const (
	KeepSource          Policy = "keep_source"
	KeepTarget          Policy = "keep_target"
	MergeSourcePriority Policy = "merge_source_priority"
	MergeTargetPriority Policy = "merge_target_priority"
	UseLatestModified   Policy = "use_latest_modified"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case KeepSource, KeepTarget, MergeSourcePriority, MergeTargetPriority, UseLatestModified:
		return p, nil
	case "":
		return UseLatestModified, nil
	}
	return "", entities.NewValidationError("policy", "unknown policy %q", s)
}

type ErrorKind string

const (
	ErrorTransient   ErrorKind = "transient"
	ErrorValidation  ErrorKind = "validation"
	ErrorUnavailable ErrorKind = "unavailable"
	ErrorSystem      ErrorKind = "system"
)

type ErrorEntry struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PassResult is the outcome of one reconciliation pass. Errors holds at most
// the configured number of entries; ErrorsDropped counts the rest.
type PassResult struct {
	Direction       Direction    `json:"direction"`
	Policy          Policy       `json:"policy"`
	Synced          int          `json:"synced"`
	Failed          int          `json:"failed"`
	Conflicted      int          `json:"conflicted"`
	Skipped         int          `json:"skipped"`
	Deleted         int          `json:"deleted"`
	IntentsReplayed int          `json:"intents_replayed"`
	Errors          []ErrorEntry `json:"errors"`
	ErrorsDropped   int          `json:"errors_dropped,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`

	maxErrors int
}

func newPassResult(d Direction, p Policy, maxErrors int, now time.Time) *PassResult {
	return &PassResult{
		Direction: d,
		Policy:    p,
		Errors:    []ErrorEntry{},
		StartedAt: now,
		maxErrors: maxErrors,
	}
}

func (r *PassResult) addError(kind ErrorKind, msg, context string) {
	if r.maxErrors > 0 && len(r.Errors) >= r.maxErrors {
		r.ErrorsDropped++
		return
	}
	r.Errors = append(r.Errors, ErrorEntry{
		Kind:      kind,
		Message:   msg,
		Context:   context,
		Timestamp: time.Now().UTC(),
	})
}

// Changed reports whether the pass wrote or deleted anything.
func (r *PassResult) Changed() bool {
	return r.Synced > 0 || r.Deleted > 0 || r.IntentsReplayed > 0
}

// State is the engine's position in a pass.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateProcessing  State = "processing"
	StateDeleting    State = "deleting"
	StateDone        State = "done"
)

// SyncStatus classifies books across the catalog and extension stores without
// changing anything.
type SyncStatus struct {
	CatalogOnly   []int64 `json:"catalog_only"`
	ExtensionOnly []int64 `json:"extension_only"`
	Conflicted    []int64 `json:"conflicted"`
	InSync        int     `json:"in_sync"`
}
