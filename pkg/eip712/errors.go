package eip712

import "errors"

var (
	// ErrMalformedDocument is returned when the document is not valid JSON
	// or lacks one of the required top-level keys.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrUnknownType is returned when a field references an undeclared type.
	ErrUnknownType = errors.New("unknown type")
	// ErrCyclicType is returned when struct types reference each other
	// without an array in between.
	ErrCyclicType = errors.New("cyclic type")
	// ErrMissingField is returned when a value lacks a field its type declares.
	ErrMissingField = errors.New("missing field")
	// ErrTypeMismatch is returned when a value cannot be coerced to its declared type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidHex is returned when a byte literal is not valid hex.
	ErrInvalidHex = errors.New("invalid hex")
)
