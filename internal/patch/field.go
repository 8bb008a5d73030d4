// Package patch provides a tri-state field type for partial updates.
//
// JSON partial updates need to distinguish three cases that a plain
// pointer cannot: the key absent (leave the value unchanged), the key
// present with null (clear the value), and the key present with a
// value (replace it). Field tracks all three.
//
// Usage in an update input:
//
//	type UpdateHomeInput struct {
//	    Name     patch.Field[string] `json:"name"`
//	    Timezone patch.Field[string] `json:"timezone"`
//	}
//
//	if input.Name.IsSet() && !input.Name.IsNull() {
//	    home.Name = input.Name.MustGet()
//	}
package patch

import "encoding/json"

// Field holds an optional, nullable JSON value.
//
// The zero value represents an absent key. encoding/json invokes
// UnmarshalJSON for keys that are present, including those set to
// literal null, so decoding an update body marks exactly the fields
// the client sent.
type Field[T any] struct {
	value T
	valid bool
	set   bool
}

// Of returns a Field that is set to the given value.
func Of[T any](v T) Field[T] {
	return Field[T]{value: v, valid: true, set: true}
}

// Null returns a Field that is set to explicit null.
func Null[T any]() Field[T] {
	return Field[T]{set: true}
}

// IsSet reports whether the key was present in the JSON body.
func (f Field[T]) IsSet() bool {
	return f.set
}

// IsNull reports whether the key was present and set to null.
func (f Field[T]) IsNull() bool {
	return f.set && !f.valid
}

// Get returns the value and whether it is usable (set and non-null).
func (f Field[T]) Get() (T, bool) {
	if !f.set || !f.valid {
		var zero T
		return zero, false
	}
	return f.value, true
}

// MustGet returns the value, or the zero value if absent or null.
// Callers should check IsSet and IsNull first.
func (f Field[T]) MustGet() T {
	return f.value
}

// Ptr returns a pointer to the value, or nil if the field is absent
// or null. Convenient for assigning to nullable entity columns.
func (f Field[T]) Ptr() *T {
	if !f.set || !f.valid {
		return nil
	}
	v := f.value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true

	if string(data) == "null" {
		f.valid = false
		var zero T
		f.value = zero
		return nil
	}

	if err := json.Unmarshal(data, &f.value); err != nil {
		return err
	}
	f.valid = true
	return nil
}

// MarshalJSON implements json.Marshaler. Absent and null fields both
// encode as null; update inputs are decode-only so this exists mainly
// for debugging output.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
