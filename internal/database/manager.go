package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/entities"
)

type StoreKind string

const (
	StoreCatalog   StoreKind = "catalog"
	StoreExtension StoreKind = "extension"
)

func ParseStoreKind(s string) (StoreKind, error) {
	switch StoreKind(s) {
	case StoreCatalog, StoreExtension:
		return StoreKind(s), nil
	}
	return "", entities.NewValidationError("kind", "unknown store %q", s)
}

type StoreState string

const (
	StateInit        StoreState = "init"
	StateReady       StoreState = "ready"
	StateRepointing  StoreState = "repointing"
	StateUnavailable StoreState = "unavailable"
)

// RepointResult is returned to callers of Repoint instead of an error; a failed
// repoint is a reportable outcome, not a crash.
type RepointResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Busy    bool   `json:"busy,omitempty"`
}

// StoreStatus is a point-in-time view of one store.
type StoreStatus struct {
	Kind  StoreKind  `json:"kind"`
	Path  string     `json:"path"`
	State StoreState `json:"state"`
	Error string     `json:"error,omitempty"`
}

type store struct {
	kind    StoreKind
	path    string
	db      *gorm.DB
	state   StoreState
	lastErr error
}

// RepointHook runs after a store was successfully reopened at a new path.
type RepointHook func(kind StoreKind, path string)

// Manager owns the catalog and extension connections. It is created once per
// process (or per test) and passed to everything that touches a store.
type Manager struct {
	mu     sync.RWMutex
	stores map[StoreKind]*store
	heal   *HealReport

	// guard serializes repoints against reconciliation passes
	guard      sync.Mutex
	passActive bool
	repointing bool

	hooks    []RepointHook
	logLevel logger.LogLevel
}

func NewManager() *Manager {
	return &Manager{
		stores: map[StoreKind]*store{
			StoreCatalog:   {kind: StoreCatalog, state: StateInit},
			StoreExtension: {kind: StoreExtension, state: StateInit},
		},
		logLevel: logger.Warn,
	}
}

// SetLogLevel changes the gorm log level for connections opened afterwards.
func (m *Manager) SetLogLevel(level logger.LogLevel) {
	m.mu.Lock()
	m.logLevel = level
	m.mu.Unlock()
}

// OnRepoint registers a hook run after every successful repoint.
func (m *Manager) OnRepoint(hook RepointHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// Open connects a store at path. A missing catalog file leaves the catalog
// unavailable; a missing extension file is created with its schema.
func (m *Manager) Open(kind StoreKind, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(kind, path)
}

func (m *Manager) openLocked(kind StoreKind, path string) error {
	s, ok := m.stores[kind]
	if !ok {
		return fmt.Errorf("unknown store kind %q", kind)
	}

	s.path = path
	db, heal, err := m.connect(kind, path)
	if err != nil {
		s.db = nil
		s.state = StateUnavailable
		s.lastErr = err
		log.Printf("Store %s unavailable at %s: %v", kind, path, err)
		return fmt.Errorf("%w: %s: %v", entities.ErrStoreUnavailable, kind, err)
	}

	s.db = db
	s.state = StateReady
	s.lastErr = nil
	if heal != nil {
		m.heal = heal
	}
	log.Printf("Store %s ready at %s", kind, path)
	return nil
}

func (m *Manager) connect(kind StoreKind, path string) (*gorm.DB, *HealReport, error) {
	if path == "" {
		return nil, nil, errors.New("no path configured")
	}

	if kind == StoreCatalog {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("catalog file %s not found", path)
		}
	}

	db, err := openGorm(path, m.logLevel)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case StoreCatalog:
		if ok, err := tableExists(db, "books"); err != nil || !ok {
			closeGorm(db)
			if err == nil {
				err = fmt.Errorf("%s is not a catalog (no books table)", path)
			}
			return nil, nil, err
		}
		return db, nil, nil
	default:
		heal := SelfHeal(db, ExtensionSchema)
		if heal.Fatal != nil {
			closeGorm(db)
			return nil, heal, heal.Fatal
		}
		return db, heal, nil
	}
}

// Repoint closes the store, switches it to newPath and reopens it, running the
// schema checks again. It refuses while a reconciliation pass is running.
func (m *Manager) Repoint(kind StoreKind, newPath string) RepointResult {
	m.guard.Lock()
	if m.passActive {
		m.guard.Unlock()
		return RepointResult{Success: false, Busy: true, Message: entities.ErrBusy.Error() + ": reconciliation pass in progress"}
	}
	m.repointing = true
	m.guard.Unlock()

	defer func() {
		m.guard.Lock()
		m.repointing = false
		m.guard.Unlock()
	}()

	m.mu.Lock()
	s, ok := m.stores[kind]
	if !ok {
		m.mu.Unlock()
		return RepointResult{Success: false, Message: fmt.Sprintf("unknown store kind %q", kind)}
	}

	s.state = StateRepointing
	if err := closeGorm(s.db); err != nil {
		log.Printf("Store %s: closing previous connection: %v", kind, err)
	}
	s.db = nil

	err := m.openLocked(kind, newPath)
	hooks := append([]RepointHook(nil), m.hooks...)
	m.mu.Unlock()

	if err != nil {
		return RepointResult{Success: false, Message: err.Error()}
	}

	for _, hook := range hooks {
		hook(kind, newPath)
	}
	return RepointResult{Success: true, Message: fmt.Sprintf("%s store now at %s", kind, newPath)}
}

// BeginPass marks a reconciliation pass as running. The returned function ends it.
func (m *Manager) BeginPass() (func(), error) {
	m.guard.Lock()
	defer m.guard.Unlock()
	if m.passActive || m.repointing {
		return nil, entities.ErrBusy
	}
	m.passActive = true

	var once sync.Once
	return func() {
		once.Do(func() {
			m.guard.Lock()
			m.passActive = false
			m.guard.Unlock()
		})
	}, nil
}

// PassActive reports whether a reconciliation pass holds the guard.
func (m *Manager) PassActive() bool {
	m.guard.Lock()
	defer m.guard.Unlock()
	return m.passActive
}

func (m *Manager) IsAvailable(kind StoreKind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[kind]
	return ok && s.state == StateReady && s.db != nil
}

// DB returns the connection for kind or ErrStoreUnavailable.
func (m *Manager) DB(kind StoreKind) (*gorm.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[kind]
	if !ok || s.state != StateReady || s.db == nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrStoreUnavailable, kind)
	}
	return s.db, nil
}

func (m *Manager) Catalog() (*gorm.DB, error) {
	return m.DB(StoreCatalog)
}

func (m *Manager) Extension() (*gorm.DB, error) {
	return m.DB(StoreExtension)
}

func (m *Manager) Path(kind StoreKind) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stores[kind]; ok {
		return s.path
	}
	return ""
}

func (m *Manager) State(kind StoreKind) StoreState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stores[kind]; ok {
		return s.state
	}
	return StateUnavailable
}

func (m *Manager) Status() []StoreStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StoreStatus, 0, len(m.stores))
	for _, kind := range []StoreKind{StoreCatalog, StoreExtension} {
		s := m.stores[kind]
		st := StoreStatus{Kind: kind, Path: s.path, State: s.state}
		if s.lastErr != nil {
			st.Error = s.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// HealReport returns the report of the last extension store open.
func (m *Manager) HealReport() *HealReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heal
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, s := range m.stores {
		if err := closeGorm(s.db); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
		s.state = StateUnavailable
	}
	return errors.Join(errs...)
}
