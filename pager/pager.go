package pager

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Pager orchestrates keyset pagination: it applies ordering, the cursor
// boundary filter and a limit with one sentinel row of lookahead to a GORM
// query. Build it with the With* methods; the zero value pages from the
// start of the dataset with DefaultLimit.
type Pager struct {
	limit  int
	cursor *Cursor
	sort   Orderings
}

func New() *Pager {
	return &Pager{limit: DefaultLimit}
}

// Decode builds a *Pager from raw API input, normalizing limit and decoding
// the cursor token. A zero limit means "not requested" and falls back to
// DefaultLimit.
func Decode(limit int, rawCursor string, orderBy ...OrderBy) (*Pager, error) {
	cursor, err := DecodeCursor(rawCursor)
	if err != nil {
		return nil, err
	}

	p := (&Pager{cursor: cursor}).WithSubstitutedSort(orderBy...)
	if limit == 0 {
		p.limit = DefaultLimit
	} else {
		p = p.WithLimit(limit)
	}

	return p, nil
}

// WithLimit sets the maximum number of returned records. The value is
// clamped to [MinLimit, MaxLimit] via NormalizeLimit.
func (p *Pager) WithLimit(limit int) *Pager {
	if p == nil {
		p = New()
	}

	p.limit = NormalizeLimit(limit)

	return p
}

// WithCursor sets the cursor explicitly.
func (p *Pager) WithCursor(cursor *Cursor) *Pager {
	if p == nil {
		p = New()
	}

	p.cursor = cursor

	return p
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (p *Pager) WithSubstitutedSort(orderBy ...OrderBy) *Pager {
	if p == nil {
		p = New()
	}

	p.sort = nil

	return p.WithSort(orderBy...)
}

// WithSort appends sort orderings without overwriting existing ones.
// Order is preserved as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (p *Pager) WithSort(orderBy ...OrderBy) *Pager {
	if p == nil {
		p = New()
	}

	for _, o := range orderBy {
		idx := slices.IndexFunc(p.sort, func(processed OrderBy) bool {
			return processed.QualifiedColumn() == o.QualifiedColumn()
		})

		// Remove previous occurrence (avoid duplication).
		if idx != -1 {
			p.sort = slices.Delete(p.sort, idx, idx+1)
		}

		p.sort = append(p.sort, o)
	}

	return p
}

// GetSort returns orderings as configured, before any direction inversion.
func (p *Pager) GetSort() Orderings {
	if p == nil {
		return nil
	}

	return p.sort
}

// GetLimit returns the effective page size.
func (p *Pager) GetLimit() int {
	if p == nil || p.limit == 0 {
		return DefaultLimit
	}

	return p.limit
}

// GetCursor returns the cursor stored in Pager as-is.
func (p *Pager) GetCursor() *Cursor {
	if p == nil {
		return nil
	}

	return p.cursor
}

// datasetLimit is the page size plus one sentinel row. The sentinel tells
// DerivePage whether more rows exist in the direction just traveled without
// a second query.
func (p *Pager) datasetLimit() int {
	return p.GetLimit() + 1
}

// effectiveSort returns the orderings to run the query with. For a "before"
// traversal every direction is inverted so the nearest preceding rows come
// first; DerivePage restores the user-visible order afterwards.
func (p *Pager) effectiveSort() Orderings {
	if !p.cursor.IsEmpty() && p.cursor.Direction == DirectionBefore {
		return p.sort.Invert()
	}

	return p.sort
}

// Paginate applies pagination to the dataset. Returns an error if pagination
// cannot be applied.
func (p *Pager) Paginate(db *gorm.DB) (*gorm.DB, error) {
	if p == nil {
		p = New()
	}

	err := p.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	sort := p.effectiveSort()
	db = sort.Apply(db)

	if !p.cursor.IsEmpty() {
		exp := boundaryDNF(sort, p.cursor.Values).toGORMExpression()
		if exp != nil {
			db = db.Clauses(exp)
		}
	}

	return db.Limit(p.datasetLimit()), nil
}

func (p *Pager) validate() error {
	if p == nil {
		return fmt.Errorf("pager is nil")
	}

	err := p.sort.validate()
	if err != nil {
		return err
	}

	return p.cursor.validate(p.sort)
}

// PageMetadata describes the position of a returned page within the dataset.
// An empty cursor string means there is no page in that direction.
type PageMetadata struct {
	PreviousCursor string
	NextCursor     string
	Limit          int
}

// DerivePage trims the sentinel row off the result set, restores the
// user-visible order for "before" traversals and attributes the
// previous/next cursors:
//
//   - no cursor used: next is set when the sentinel was present, previous is
//     never set;
//   - "after" cursor used: previous is always set (the boundary is assumed to
//     have preceding rows), next only when the sentinel was present;
//   - "before" cursor used: the mirror image — next is always set, previous
//     only when rows remain further back;
//   - empty result set: both cursors unset.
//
// values must return the row's ordering-column values, positionally aligned
// with the pager's sort. It is typically the entity's Query Contract.
func DerivePage[T any](p *Pager, resultSet []T, values func(T) []any) ([]T, PageMetadata, error) {
	err := p.validate()
	if err != nil {
		return nil, PageMetadata{}, fmt.Errorf("cannot derive page: %w", err)
	}

	metadata := PageMetadata{Limit: p.GetLimit()}
	if len(resultSet) == 0 {
		return resultSet, metadata, nil
	}

	// The sentinel row, when present, indicates more rows exist in the
	// direction just traveled.
	hasMore := len(resultSet) > p.GetLimit()
	if hasMore {
		resultSet = resultSet[:p.GetLimit()]
	}

	before := !p.cursor.IsEmpty() && p.cursor.Direction == DirectionBefore
	if before {
		resultSet = lo.Reverse(slices.Clone(resultSet))
	}

	first := resultSet[0]
	last := resultSet[len(resultSet)-1]

	switch {
	case p.cursor.IsEmpty():
		if hasMore {
			metadata.NextCursor = NewCursor(DirectionAfter, values(last)...).String()
		}
	case before:
		metadata.NextCursor = NewCursor(DirectionAfter, values(last)...).String()
		if hasMore {
			metadata.PreviousCursor = NewCursor(DirectionBefore, values(first)...).String()
		}
	default:
		metadata.PreviousCursor = NewCursor(DirectionBefore, values(first)...).String()
		if hasMore {
			metadata.NextCursor = NewCursor(DirectionAfter, values(last)...).String()
		}
	}

	return resultSet, metadata, nil
}
