// Package store is the generic (resource_type, id) keyed resource store and
// bundle orchestrator (spec §4.1). It replaces the teacher's per-type
// repositories (internal/domain/<type>/repo_pg.go) with a single engine that
// serves every resource type uniformly: versioned CRUD, soft delete,
// optimistic concurrency, conditional operations, and batch/transaction/
// history bundle replay.
package store

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/ehr/internal/apperr"
	"github.com/ehr/ehr/internal/platform/db"
)

// idPattern matches the spec §3 rule for resource ids: <= 64 chars,
// [A-Za-z0-9\-\.]+.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)

// Resource is the in-memory representation of one version of one resource.
// Body is the parsed JSON document; callers that need the raw bytes can
// re-marshal it (the store always re-stamps meta before doing so).
type Resource struct {
	Type        string
	ID          string
	VersionID   int
	LastUpdated time.Time
	Deleted     bool
	Body        map[string]interface{}
}

// ETag renders the weak ETag the HTTP layer and If-Match handling use.
func (r *Resource) ETag() string {
	return `W/"` + strconv.Itoa(r.VersionID) + `"`
}

// Indexer is the write-side collaborator that re-derives search index rows
// for a resource version (spec §4.2). The store calls it after committing a
// write; index.Indexer implements this.
type Indexer interface {
	Index(ctx context.Context, q Querier, res *Resource) error
	DeleteIndex(ctx context.Context, q Querier, resourceType, id string) error
}

// ConditionalMatcher resolves a FHIR search criteria string to the set of
// matching resource ids within a transaction, for conditional create/update/
// delete and for resolving search-url references inside a write (spec §4.1
// "Conditional reference resolution"). internal/search implements this.
type ConditionalMatcher interface {
	Match(ctx context.Context, q Querier, resourceType, criteria string) ([]string, error)
}

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx. Every
// method on Store that touches the database accepts one so the same code
// path works whether or not it is already inside a caller-managed
// transaction (teacher idiom: internal/domain/identity/repo_pg.go's
// `querier` interface, generalized to export it for internal/search and
// internal/index to share).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is the generic resource store.
type Store struct {
	pool     *pgxpool.Pool
	indexer  Indexer
	matcher  ConditionalMatcher
	hooks    []WriteHook
	hardDel  bool
	log      zerolog.Logger
}

// WriteHook is invoked after a write commits, outside the write's own
// transaction, so conformance-resource side effects (registry invalidation,
// snapshot cache invalidation) never hold up the write itself (spec §9
// "Parameter registry as global mutable state" — invalidation is
// event-driven, not part of the critical section).
type WriteHook func(ctx context.Context, res *Resource)

// Option configures a Store.
type Option func(*Store)

// WithHardDelete makes delete() purge history instead of appending a
// tombstone version (spec §4.1 "Hard mode removes all rows").
func WithHardDelete() Option { return func(s *Store) { s.hardDel = true } }

// WithWriteHook registers a post-commit hook, e.g. registry invalidation on
// SearchParameter writes (spec §9).
func WithWriteHook(h WriteHook) Option { return func(s *Store) { s.hooks = append(s.hooks, h) } }

// New builds a Store. indexer and matcher may be nil during bootstrap (e.g.
// installing the first packages before the registry has any parameters);
// callers must supply both before serving production traffic.
func New(pool *pgxpool.Pool, indexer Indexer, matcher ConditionalMatcher, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{pool: pool, indexer: indexer, matcher: matcher, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// conn resolves the Querier for ctx: an active transaction first, then a
// context-bound tenant connection (set by db.TenantMiddleware), falling back
// to the pool itself.
func (s *Store) conn(ctx context.Context) Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

// withTx runs fn inside a transaction. If ctx already carries one (nested
// call from bundle processing), fn reuses it and this call does not commit
// or roll back — only the outermost caller owns the transaction boundary.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if tx := db.TxFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}
	txCtx, tx, err := db.WithTx(ctx)
	if err != nil {
		return apperr.Wrap(err, "begin transaction")
	}
	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(err, "commit transaction")
	}
	return nil
}

func validateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperr.Invalid("id", "resource id %q does not match [A-Za-z0-9-.]{1,64}", id)
	}
	return nil
}

func (s *Store) runHooks(ctx context.Context, res *Resource) {
	for _, h := range s.hooks {
		h(ctx, res)
	}
}
