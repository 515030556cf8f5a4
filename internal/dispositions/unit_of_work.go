package dispositions

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"dialer-platform/internal/leads"
	"dialer-platform/internal/nudges"
	"dialer-platform/internal/phonenumbers"
	"dialer-platform/internal/pipeline"
	"dialer-platform/internal/workflow"
	"dialer-platform/pkg/utils"
)

// EventStore records which (call, event) pairs have already been applied.
type EventStore interface {
	// MarkProcessed returns false if the pair was already recorded.
	MarkProcessed(ctx context.Context, providerCallID, eventType string, at time.Time) (bool, error)
}

// Repositories are bound to one unit of work.
type Repositories struct {
	Events   EventStore
	Leads    leads.Repository
	Pipeline pipeline.Repository
	Nudges   nudges.Repository
	Workflow workflow.Repository
	Numbers  phonenumbers.Repository
}

// Tx is an open unit of work.
type Tx interface {
	Repos() Repositories
	// Savepoint runs fn so that its writes are discarded if it fails, without
	// aborting the enclosing unit of work.
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// UnitOfWork commits everything fn does atomically, or nothing if fn fails.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PostgresUnitOfWork runs in a single database transaction with one savepoint per step.
type PostgresUnitOfWork struct {
	db *sql.DB
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

func (u *PostgresUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTx(ctx, u.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, postgresTx{tx: tx})
	})
}

type postgresTx struct {
	tx *sql.Tx
}

func (t postgresTx) Repos() Repositories {
	return Repositories{
		Events:   NewPostgresEventStore(t.tx),
		Leads:    leads.NewPostgresRepository(t.tx),
		Pipeline: pipeline.NewPostgresRepository(t.tx),
		Nudges:   nudges.NewPostgresRepository(t.tx),
		Workflow: workflow.NewPostgresRepository(t.tx),
		Numbers:  phonenumbers.NewPostgresRepository(t.tx),
	}
}

func (t postgresTx) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return utils.WithSavepoint(ctx, t.tx, name, fn)
}

// PostgresEventStore assumes PRIMARY KEY (provider_call_id, event_type) on webhook_events.
type PostgresEventStore struct {
	db utils.DBTX
}

func NewPostgresEventStore(db utils.DBTX) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) MarkProcessed(ctx context.Context, providerCallID, eventType string, at time.Time) (bool, error) {
	const q = `
INSERT INTO webhook_events (provider_call_id, event_type, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (provider_call_id, event_type) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q, providerCallID, eventType, at)
	if err != nil {
		return false, fmt.Errorf("dispositions: mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dispositions: mark processed: %w", err)
	}
	return n > 0, nil
}

// MemoryUnitOfWork serializes runs over in-memory repositories. Writes are not
// rolled back, so repositories used with it must fail before mutating.
// Intended for tests.
type MemoryUnitOfWork struct {
	mu    sync.Mutex
	repos Repositories
}

func NewMemoryUnitOfWork(r Repositories) *MemoryUnitOfWork {
	if r.Events == nil {
		r.Events = NewMemoryEventStore()
	}
	return &MemoryUnitOfWork{repos: r}
}

func (u *MemoryUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(ctx, memoryTx{repos: u.repos})
}

type memoryTx struct {
	repos Repositories
}

func (t memoryTx) Repos() Repositories { return t.repos }

func (t memoryTx) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type eventKey struct{ call, event string }

type MemoryEventStore struct {
	mu   sync.Mutex
	seen map[eventKey]time.Time
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{seen: map[eventKey]time.Time{}}
}

func (s *MemoryEventStore) MarkProcessed(ctx context.Context, providerCallID, eventType string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := eventKey{providerCallID, eventType}
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	s.seen[k] = at
	return true, nil
}
