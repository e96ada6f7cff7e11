package model

import (
	"bytes"
	"encoding/json"
)

// Opt is one field of a tagged update. The zero value means "leave unchanged";
// an explicit JSON null sets Null; any other value sets Value.
// Fields using Opt are tagged omitzero so unset fields are not encoded.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Opt that sets v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Clear returns an Opt that sets the field to null.
func Clear[T any]() Opt[T] {
	return Opt[T]{Set: true, Null: true}
}

// IsZero reports whether the field is absent.
func (o Opt[T]) IsZero() bool {
	return !o.Set
}

// Get returns the value and whether a non-null value was supplied.
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}
