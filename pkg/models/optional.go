package models

import "encoding/json"

// Optional is a tri-state patch field: absent, explicitly null, or set to
// a value. JSON decoding preserves the distinction — a key missing from
// the payload leaves Set false (no-op on update), while an explicit null
// sets Set true with Valid false (clears the column).
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns an Optional holding the given value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns an Optional that is set but explicitly null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Ptr returns a pointer to the value, or nil when the field is unset or null.
func (o Optional[T]) Ptr() *T {
	if !o.Set || !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked for keys
// present in the payload, which is what makes the absent/null distinction
// observable after decoding.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler for symmetry; unset fields encode
// as null (encoding/json cannot omit non-pointer struct fields).
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
