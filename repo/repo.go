// Package repo composes the pager and changeset packages into the two
// operations entity modules consume: keyset-paginated reads and atomic
// fetch-lock-update writes. Entities plug in through the Queryable contract;
// the storage engine is GORM, and the database transaction opened by
// FetchAndUpdate is exclusively owned by that call.
package repo

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akarpachev/repokit/changeset"
	"github.com/akarpachev/repokit/pager"
)

// ListOption configures a List call.
type ListOption func(*listOptions)

type listOptions struct {
	limit    int
	hasLimit bool
	cursor   string
	preload  []string
	filters  map[string]any
}

// WithLimit requests a page size. Out-of-range values are silently clamped
// to [pager.MinLimit, pager.MaxLimit]; omitting the option means
// pager.DefaultLimit.
func WithLimit(limit int) ListOption {
	return func(o *listOptions) {
		o.limit = limit
		o.hasLimit = true
	}
}

// WithCursor positions the page at an encoded cursor token.
func WithCursor(token string) ListOption {
	return func(o *listOptions) {
		o.cursor = token
	}
}

// WithPreload requests association preloads by key.
func WithPreload(keys ...string) ListOption {
	return func(o *listOptions) {
		o.preload = append(o.preload, keys...)
	}
}

// WithFilter supplies a value for one of the contract's filter descriptors.
func WithFilter(name string, value any) ListOption {
	return func(o *listOptions) {
		if o.filters == nil {
			o.filters = make(map[string]any)
		}
		o.filters[name] = value
	}
}

// List executes keyset pagination over the base query db according to the
// entity's Query Contract. It decodes the cursor (failing closed with
// pager.ErrInvalidCursor), builds the ordered, boundary-filtered,
// limit-bounded query, executes it, derives page metadata from the sentinel
// row and resolves the requested preloads.
//
// The read is not wrapped in a transaction: keyset bounds keep pages stable
// under concurrent inserts and deletes, but adjacent pages fetched at
// different times may reflect different logical snapshots. That is the
// method's trade-off, not a defect.
func List[T any](db *gorm.DB, q Queryable[T], opts ...ListOption) ([]T, pager.PageMetadata, error) {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}

	cursor, err := pager.DecodeCursor(o.cursor)
	if err != nil {
		return nil, pager.PageMetadata{}, err
	}

	limit := pager.DefaultLimit
	if o.hasLimit {
		limit = pager.NormalizeLimit(o.limit)
	}

	p := pager.New().
		WithLimit(limit).
		WithCursor(cursor).
		WithSubstitutedSort(q.CursorFields()...)

	db, err = applyFilters(db, q, o.filters)
	if err != nil {
		return nil, pager.PageMetadata{}, fmt.Errorf("cannot list: %w", err)
	}

	funcs, scoped, defaults := splitPreloads(q, o.preload)
	db = applyPreloads(db, scoped, defaults)

	paged, err := p.Paginate(db)
	if err != nil {
		return nil, pager.PageMetadata{}, fmt.Errorf("cannot list: %w", err)
	}

	var rows []T
	if err = paged.Find(&rows).Error; err != nil {
		return nil, pager.PageMetadata{}, fmt.Errorf("cannot list: %w", err)
	}

	rows, metadata, err := pager.DerivePage(p, rows, q.CursorValues)
	if err != nil {
		return nil, pager.PageMetadata{}, fmt.Errorf("cannot list: %w", err)
	}

	rows, err = resolveFuncs(rows, funcs)
	if err != nil {
		return nil, pager.PageMetadata{}, fmt.Errorf("cannot list: %w", err)
	}

	return rows, metadata, nil
}

func applyFilters[T any](db *gorm.DB, q Queryable[T], values map[string]any) (*gorm.DB, error) {
	if len(values) == 0 {
		return db, nil
	}

	f, ok := q.(Filterable)
	if !ok {
		return nil, fmt.Errorf("contract declares no filters")
	}

	known := f.Filters()
	for name, value := range values {
		matched := false
		for _, filter := range known {
			if filter.Name == name {
				db = filter.Apply(db, value)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unknown filter '%s'", name)
		}
	}

	return db, nil
}

// FetchOption configures a Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	preload []string
	lock    bool
}

// WithFetchPreload requests association preloads by key.
func WithFetchPreload(keys ...string) FetchOption {
	return func(o *fetchOptions) {
		o.preload = append(o.preload, keys...)
	}
}

// WithLock acquires a row-level exclusive lock on the fetched row. Only
// meaningful inside a transaction.
func WithLock() FetchOption {
	return func(o *fetchOptions) {
		o.lock = true
	}
}

// Fetch returns the first row matching the base query, resolving the
// requested preloads. Zero matching rows yield ErrNotFound.
func Fetch[T any](db *gorm.DB, q Queryable[T], opts ...FetchOption) (T, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	var zero T

	funcs, scoped, defaults := splitPreloads(q, o.preload)

	row, err := fetchOne[T](applyPreloads(db, scoped, defaults), o.lock)
	if err != nil {
		return zero, err
	}

	rows, err := resolveFuncs([]T{row}, funcs)
	if err != nil {
		return zero, err
	}

	return rows[0], nil
}

func fetchOne[T any](db *gorm.DB, lock bool) (T, error) {
	var row T

	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	res := db.Limit(1).Find(&row)
	if res.Error != nil {
		return row, fmt.Errorf("cannot fetch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return row, ErrNotFound
	}

	return row, nil
}

// AfterCommitFunc runs once the mutation has committed, outside the lock
// and transaction scope. A hook cannot roll the mutation back; it must
// succeed or handle its own failure.
type AfterCommitFunc[T any] func(updated T, cs changeset.Changeset[T])

// UpdateOptions configures a FetchAndUpdate call.
type UpdateOptions[T any] struct {
	// With builds the changeset from the row fetched under lock. Required.
	With func(row T) changeset.Changeset[T]
	// Preload lists association keys to resolve on the committed entity.
	Preload []string
	// AfterCommit hooks receive the committed entity and its changeset.
	AfterCommit []AfterCommitFunc[T]
}

// FetchAndUpdate atomically fetches the first row matching the base query
// under a row-level exclusive lock, applies the changeset produced by
// opts.With and commits — all inside one transaction. Concurrent calls
// targeting the same row serialize on the lock: the second caller blocks
// until the first commits or rolls back, then observes the post-commit
// state.
//
// Outcomes:
//   - zero rows matched: ErrNotFound, transaction rolled back, no hooks run;
//   - invalid changeset: its changeset.Errors, transaction rolled back, no
//     hooks run;
//   - apply/storage failure: propagated opaquely, transaction rolled back;
//   - success: after-commit hooks run outside the transaction, then the
//     requested preloads are resolved on the committed entity.
//
// The update statement itself runs savepoint-scoped, so an apply failure
// does not poison an enclosing transaction.
func FetchAndUpdate[T any](db *gorm.DB, q Queryable[T], opts UpdateOptions[T]) (T, error) {
	var zero T

	if opts.With == nil {
		return zero, fmt.Errorf("cannot fetch and update: missing changeset builder")
	}

	var (
		row T
		cs  changeset.Changeset[T]
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = fetchOne[T](tx, true)
		if err != nil {
			return err
		}

		cs = opts.With(row).WithAction(changeset.ActionUpdate)
		changes, err := cs.Changes()
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		return tx.Transaction(func(tx *gorm.DB) error {
			return tx.Model(&row).Updates(changes).Error
		})
	})
	if err != nil {
		return zero, err
	}

	for _, hook := range opts.AfterCommit {
		hook(row, cs)
	}

	return resolvePreloads(db, q, row, opts.Preload)
}

// resolvePreloads hydrates the committed entity. Scoped and default
// preloads require a refetch, which identifies the row by its ordering
// tuple — the contract guarantees the trailing field is unique.
func resolvePreloads[T any](db *gorm.DB, q Queryable[T], row T, preload []string) (T, error) {
	if len(preload) == 0 {
		return row, nil
	}

	var zero T

	funcs, scoped, defaults := splitPreloads(q, preload)

	if len(scoped)+len(defaults) > 0 {
		refetch := db.Session(&gorm.Session{NewDB: true})

		fields := q.CursorFields()
		values := q.CursorValues(row)
		if len(fields) != len(values) {
			return zero, fmt.Errorf("cannot resolve preloads: cursor value number mismatch")
		}
		for i, field := range fields {
			refetch = refetch.Where(fmt.Sprintf("%s = ?", field.QualifiedColumn()), values[i])
		}

		var err error
		row, err = fetchOne[T](applyPreloads(refetch, scoped, defaults), false)
		if err != nil {
			return zero, fmt.Errorf("cannot resolve preloads: %w", err)
		}
	}

	rows, err := resolveFuncs([]T{row}, funcs)
	if err != nil {
		return zero, err
	}

	return rows[0], nil
}
