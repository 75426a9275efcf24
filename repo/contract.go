package repo

import (
	"gorm.io/gorm"

	"github.com/akarpachev/repokit/pager"
)

// Queryable is the capability contract every paginated entity type
// implements. It is the sole extension point domain modules use to plug
// into List and FetchAndUpdate.
type Queryable[T any] interface {
	// CursorFields returns the orderings defining a strict total order over
	// result rows. The trailing field MUST be unique per row (typically the
	// primary key), or boundary placement under "before" traversal is
	// ambiguous.
	CursorFields() pager.Orderings

	// CursorValues returns the row's values for CursorFields, positionally
	// aligned. None of them may be null for a row that can become a page
	// boundary.
	CursorValues(row T) []any
}

// Preloadable is an optional contract capability supplying named custom
// preload resolvers. Keys absent from the map fall through to GORM's
// default join preload.
type Preloadable[T any] interface {
	Preloads() map[string]Resolver[T]
}

// Filterable is an optional contract capability supplying named filter
// descriptors applied to the base query before pagination.
type Filterable interface {
	Filters() []Filter
}

// Filter scopes the base query with a caller-supplied value.
type Filter struct {
	Name  string
	Apply func(db *gorm.DB, value any) *gorm.DB
}

// Resolver is one of three preload resolution strategies:
//
//   - ResolverFunc: enriches the fetched rows after query execution;
//   - ResolverQuery: scopes the default preload with a pre-built sub-query;
//   - ResolverLazy: produces the sub-query scope lazily, at resolution time.
type Resolver[T any] interface {
	resolver([]T)
}

type (
	ResolverFunc[T any] func(rows []T) ([]T, error)

	ResolverQuery[T any] struct {
		Scope func(db *gorm.DB) *gorm.DB
	}

	ResolverLazy[T any] func() func(db *gorm.DB) *gorm.DB
)

func (ResolverFunc[T]) resolver([]T)  {}
func (ResolverQuery[T]) resolver([]T) {}
func (ResolverLazy[T]) resolver([]T)  {}

// Registry is a name -> Query Contract map built once at startup and
// treated as read-only afterwards. Pass it explicitly to the components
// that need it; it is deliberately not ambient state.
type Registry map[string]any

// NewRegistry builds an empty contract registry.
func NewRegistry() Registry {
	return make(Registry)
}

// RegisterContract records a contract under name. Call during startup only;
// the map requires no synchronization once reads begin.
func RegisterContract[T any](r Registry, name string, q Queryable[T]) {
	r[name] = q
}

// LookupContract returns the contract registered under name, if it exists
// and serves entity type T.
func LookupContract[T any](r Registry, name string) (Queryable[T], bool) {
	q, ok := r[name].(Queryable[T])
	return q, ok
}
