package changeset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action describes the storage operation a changeset is destined for.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
)

// Error is a single field-scoped validation error.
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is the ordered list of field-scoped validation errors accumulated
// by a changeset. It implements error so callers can branch on it with
// errors.As.
type Errors []Error

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, err := range e {
		parts = append(parts, err.Error())
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// On returns all messages attached to field, in the order they were added.
func (e Errors) On(field string) []string {
	var ret []string
	for _, err := range e {
		if err.Field == field {
			ret = append(ret, err.Message)
		}
	}

	return ret
}

// Changeset is a validated, in-flight representation of proposed field
// mutations. It carries the source data, the pending changes keyed by
// storage column, and accumulated field errors.
//
// Changesets are immutable: every operation returns a derived copy, so a
// validation pipeline can never leave a half-mutated value behind. The
// pending changes are applied to storage atomically or not at all — the
// terminal Changes call refuses to produce a storage map for an invalid
// changeset.
type Changeset[T any] struct {
	data    T
	changes map[string]any
	errs    Errors
	valid   bool
	action  Action
}

// Cast builds a changeset over data from untrusted raw attributes, copying
// only the permitted keys into the pending changes.
func Cast[T any](data T, attrs map[string]any, permitted ...string) Changeset[T] {
	changes := make(map[string]any, len(permitted))
	for _, field := range permitted {
		if v, ok := attrs[field]; ok {
			changes[field] = v
		}
	}

	return Changeset[T]{
		data:    data,
		changes: changes,
		valid:   true,
	}
}

// clone returns a copy with its own changes map and errors slice, so the
// receiver is never observed mid-mutation.
func (c Changeset[T]) clone() Changeset[T] {
	changes := make(map[string]any, len(c.changes)+1)
	for k, v := range c.changes {
		changes[k] = v
	}

	errs := make(Errors, len(c.errs), len(c.errs)+1)
	copy(errs, c.errs)

	c.changes = changes
	c.errs = errs

	return c
}

// Data returns the source value the changeset was cast over.
func (c Changeset[T]) Data() T {
	return c.data
}

// Valid reports whether no validation step has failed so far.
func (c Changeset[T]) Valid() bool {
	return c.valid
}

// Errors returns the accumulated field errors.
func (c Changeset[T]) Errors() Errors {
	return c.errs
}

// HasError reports whether an error is already attached to field.
func (c Changeset[T]) HasError(field string) bool {
	for _, err := range c.errs {
		if err.Field == field {
			return true
		}
	}

	return false
}

// GetChange returns the pending change for field, if any.
func (c Changeset[T]) GetChange(field string) (any, bool) {
	v, ok := c.changes[field]
	return v, ok
}

// FetchField returns the pending change for field, falling back to current
// when none is pending.
func (c Changeset[T]) FetchField(field string, current any) any {
	if v, ok := c.changes[field]; ok {
		return v
	}

	return current
}

// dataFields returns the source data's JSON projection, keyed the same way
// cast attributes are. Validators that must consider persisted values as well
// as pending changes read their fallback from here.
func (c Changeset[T]) dataFields() map[string]any {
	raw, err := json.Marshal(c.data)
	if err != nil {
		return nil
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	return fields
}

// Empty reports whether the changeset carries no pending changes.
func (c Changeset[T]) Empty() bool {
	return len(c.changes) == 0
}

// PutChange sets the pending change for field, replacing any previous one.
func (c Changeset[T]) PutChange(field string, value any) Changeset[T] {
	c = c.clone()
	c.changes[field] = value

	return c
}

// DeleteChange removes the pending change for field.
func (c Changeset[T]) DeleteChange(field string) Changeset[T] {
	c = c.clone()
	delete(c.changes, field)

	return c
}

// AddError appends a field-scoped error and marks the changeset invalid.
// Existing errors are never discarded.
func (c Changeset[T]) AddError(field, message string) Changeset[T] {
	c = c.clone()
	c.errs = append(c.errs, Error{Field: field, Message: message})
	c.valid = false

	return c
}

// Action returns the storage operation the changeset is destined for.
func (c Changeset[T]) Action() Action {
	return c.action
}

// WithAction tags the changeset with its storage operation.
func (c Changeset[T]) WithAction(action Action) Changeset[T] {
	c.action = action
	return c
}

// Changes is the terminal operation: it returns the storage representation
// of the pending changes, or the accumulated Errors when the changeset is
// invalid. Pending polymorphic embeds are flattened here and only here, so
// an invalid changeset never leaks a partially applied embed.
func (c Changeset[T]) Changes() (map[string]any, error) {
	if !c.valid {
		return nil, c.errs
	}

	out := make(map[string]any, len(c.changes))
	for field, v := range c.changes {
		pe, ok := v.(pendingEmbed)
		if !ok {
			out[field] = v
			continue
		}

		flat, err := pe.flatten()
		if err != nil {
			return nil, fmt.Errorf("cannot flatten embed '%s': %w", field, err)
		}
		out[field] = flat
	}

	return out, nil
}
