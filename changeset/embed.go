package changeset

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Variant tags a polymorphic embedded value. The tag discriminates the
// storage representation: an embed is persisted as a tagged union document
//
//	{"kind": <tag>, "data": {<fields>}}
//
// never as a live nested structure.
type Variant interface {
	VariantTag() string
}

// pendingEmbed is the type-erased view of a nested changeset held as a
// pending change until flattening.
type pendingEmbed interface {
	flatten() (any, error)
}

type embeddedChangeset[E Variant] struct {
	cs Changeset[E]
}

// flatten applies the nested pending changes over the embedded value's JSON
// form and wraps the result as the tagged union document, serialized for
// storage. Field keys of the nested changeset must match the value's JSON
// tags.
func (e embeddedChangeset[E]) flatten() (any, error) {
	raw, err := json.Marshal(e.cs.Data())
	if err != nil {
		return nil, fmt.Errorf("serialize embedded value: %w", err)
	}

	base := make(map[string]any)
	if err = json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("serialize embedded value: %w", err)
	}

	changes, err := e.cs.Changes()
	if err != nil {
		return nil, err
	}
	for k, v := range changes {
		base[k] = v
	}

	doc, err := json.Marshal(map[string]any{
		"kind": e.cs.Data().VariantTag(),
		"data": base,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize embed document: %w", err)
	}

	return string(doc), nil
}

// CastPolymorphicEmbed validates the submitted attributes for field as a
// nested changeset built by builder over the existing embedded value.
//
// Rules:
//   - if field already carries an error, the embed is skipped entirely
//     (embeds are not validated on already-invalid carriers);
//   - if required and both the existing value and the submitted attributes
//     are empty, a "can't be blank" error is attached — this is a validation
//     failure, not an embed attempt;
//   - otherwise the nested changeset is built and held as the pending change
//     for field. The parent stays valid only while the nested changeset is
//     valid; nested errors surface as "<field>.<subfield>".
//
// The nested changeset is flattened into its tagged storage form only at
// Changes time, and only if the whole changeset is still valid.
func CastPolymorphicEmbed[T any, E Variant](
	c Changeset[T],
	field string,
	existing E,
	required bool,
	builder func(existing E, attrs map[string]any) Changeset[E],
) Changeset[T] {
	if c.HasError(field) {
		return c
	}

	raw, submitted := c.GetChange(field)

	var zero E
	existingEmpty := reflect.DeepEqual(existing, zero)

	if !submitted && existingEmpty {
		if required {
			return c.AddError(field, "can't be blank")
		}

		return c
	}

	attrs, ok := raw.(map[string]any)
	if submitted && !ok {
		return c.AddError(field, "is invalid")
	}
	if attrs == nil {
		attrs = map[string]any{}
	}

	nested := builder(existing, attrs)

	c = c.PutChange(field, embeddedChangeset[E]{cs: nested})
	if !nested.Valid() {
		for _, err := range nested.Errors() {
			c = c.AddError(field+"."+err.Field, err.Message)
		}
	}

	return c
}
