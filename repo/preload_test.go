package repo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type resolverZooContract struct{ userContract }

func (resolverZooContract) Preloads() map[string]Resolver[user] {
	return map[string]Resolver[user]{
		"enrich": ResolverFunc[user](func(rows []user) ([]user, error) {
			return rows, nil
		}),
		"scoped": ResolverQuery[user]{
			Scope: func(db *gorm.DB) *gorm.DB {
				return db.Where("deleted_at IS NULL")
			},
		},
		"lazy": ResolverLazy[user](func() func(db *gorm.DB) *gorm.DB {
			return func(db *gorm.DB) *gorm.DB {
				return db
			}
		}),
	}
}

func Test_splitPreloads(t *testing.T) {
	funcs, scoped, defaults := splitPreloads[user](
		resolverZooContract{},
		[]string{"scoped", "Zebra", "enrich", "lazy", "Alpha"},
	)

	require.Len(t, funcs, 1)
	require.Contains(t, funcs, "enrich")

	require.Len(t, scoped, 2)
	require.Contains(t, scoped, "scoped")
	require.Contains(t, scoped, "lazy")
	require.NotNil(t, scoped["lazy"])

	// Keys without a custom resolver fall through to the default join
	// preload, in deterministic order.
	require.Equal(t, []string{"Alpha", "Zebra"}, defaults)
}

func Test_splitPreloads_WithoutPreloadable(t *testing.T) {
	funcs, scoped, defaults := splitPreloads[user](userContract{}, []string{"B", "A"})

	require.Empty(t, funcs)
	require.Empty(t, scoped)
	require.Equal(t, []string{"A", "B"}, defaults)
}

func Test_resolveFuncs_RunsInSortedKeyOrder(t *testing.T) {
	var order []string

	mark := func(key string) ResolverFunc[user] {
		return func(rows []user) ([]user, error) {
			order = append(order, key)
			return rows, nil
		}
	}

	rows, err := resolveFuncs([]user{{ID: "u1"}}, map[string]ResolverFunc[user]{
		"b": mark("b"),
		"a": mark("a"),
		"c": mark("c"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func Test_resolveFuncs_WrapsError(t *testing.T) {
	_, err := resolveFuncs([]user{{ID: "u1"}}, map[string]ResolverFunc[user]{
		"stats": func(rows []user) ([]user, error) {
			return nil, fmt.Errorf("backend unavailable")
		},
	})

	require.ErrorContains(t, err, "cannot resolve preload 'stats'")
	require.ErrorContains(t, err, "backend unavailable")
}
