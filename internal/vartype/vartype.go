// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package vartype

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// VarFloat64 is a type alias for Variable[float64], used for optional altitudes and offsets.
	VarFloat64 = Variable[float64]

	// VarBool is a type alias for Variable[bool], used for the optional in/out-of-bounds status a
	// tag may report on its own.
	VarBool = Variable[bool]

	// VarTime is a type alias for Variable[time.Time], used for optional report timestamps.
	VarTime = Variable[time.Time]
)

// Variable represents an optional value and tracks whether it was ever set. The zero value is
// unset.
type Variable[T any] struct {
	value T
	isset bool
}

// NewVariable creates and returns a new Variable instance initialized with the provided value.
func NewVariable[T any](value T) Variable[T] {
	return Variable[T]{
		isset: true,
		value: value,
	}
}

// Reset clears the value of the Variable and marks it as unset.
func (v *Variable[T]) Reset() {
	var newVal T
	v.value = newVal
	v.isset = false
}

// Value retrieves the current value stored in the Variable.
func (v Variable[T]) Value() T {
	return v.value
}

// ValueOr returns the stored value or fallback if the Variable is unset.
func (v Variable[T]) ValueOr(fallback T) T {
	if !v.isset {
		return fallback
	}
	return v.value
}

// Set assigns the provided value to the Variable and marks it as set.
func (v *Variable[T]) Set(val T) {
	v.value = val
	v.isset = true
}

// IsSet returns true if the Variable holds a value.
func (v Variable[T]) IsSet() bool {
	return v.isset
}

// String returns a string representation of the Variable.
func (v Variable[T]) String() string {
	if !v.isset {
		return "n/a"
	}
	return fmt.Sprint(v.value)
}

// MarshalJSON encodes an unset Variable as null.
func (v Variable[T]) MarshalJSON() ([]byte, error) {
	if !v.isset {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

// UnmarshalJSON treats a JSON null as unset. Absent keys never reach UnmarshalJSON and
// therefore stay unset as well.
func (v *Variable[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		v.Reset()
		return nil
	}
	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	v.Set(val)
	return nil
}
