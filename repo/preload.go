package repo

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// splitPreloads partitions the requested preload keys by resolution
// strategy: post-fetch enrichment functions, query scopes to attach before
// execution, and keys left to GORM's default join preload. Keys are
// processed in sorted order so resolution is deterministic.
func splitPreloads[T any](q Queryable[T], keys []string) (funcs map[string]ResolverFunc[T], scoped map[string]func(*gorm.DB) *gorm.DB, defaults []string) {
	funcs = make(map[string]ResolverFunc[T])
	scoped = make(map[string]func(*gorm.DB) *gorm.DB)

	var resolvers map[string]Resolver[T]
	if p, ok := q.(Preloadable[T]); ok {
		resolvers = p.Preloads()
	}

	for _, key := range keys {
		resolver, ok := resolvers[key]
		if !ok {
			defaults = append(defaults, key)
			continue
		}

		switch r := resolver.(type) {
		case ResolverFunc[T]:
			funcs[key] = r
		case ResolverQuery[T]:
			scoped[key] = r.Scope
		case ResolverLazy[T]:
			scoped[key] = r()
		default:
			defaults = append(defaults, key)
		}
	}

	sort.Strings(defaults)

	return funcs, scoped, defaults
}

// applyPreloads attaches the scoped and default preloads to the query
// before execution.
func applyPreloads(db *gorm.DB, scoped map[string]func(*gorm.DB) *gorm.DB, defaults []string) *gorm.DB {
	keys := make([]string, 0, len(scoped))
	for key := range scoped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if scope := scoped[key]; scope != nil {
			db = db.Preload(key, scope)
		} else {
			db = db.Preload(key)
		}
	}

	for _, key := range defaults {
		db = db.Preload(key)
	}

	return db
}

// resolveFuncs runs the post-fetch enrichment resolvers over the rows, in
// sorted key order.
func resolveFuncs[T any](rows []T, funcs map[string]ResolverFunc[T]) ([]T, error) {
	keys := make([]string, 0, len(funcs))
	for key := range funcs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		rows, err = funcs[key](rows)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve preload '%s': %w", key, err)
		}
	}

	return rows, nil
}
