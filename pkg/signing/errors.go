package signing

import (
	"errors"

	"github.com/m1ome/ex-eip712/pkg/eip712"
	"github.com/m1ome/ex-eip712/pkg/sign"
)

// ErrInvalidHex is returned when the secret is not valid hex.
var ErrInvalidHex = eip712.ErrInvalidHex

// Kind classifies a failure.
type Kind string

const (
	KindNone              Kind = ""
	KindInvalidHex        Kind = "invalid_hex"
	KindInvalidKey        Kind = "invalid_key"
	KindMalformedDocument Kind = "malformed_document"
	KindUnknownType       Kind = "unknown_type"
	KindCyclicType        Kind = "cyclic_type"
	KindMissingField      Kind = "missing_field"
	KindTypeMismatch      Kind = "type_mismatch"
	KindInternal          Kind = "internal"
)

var kinds = []struct {
	target error
	kind   Kind
}{
	{ErrInvalidHex, KindInvalidHex},
	{sign.ErrInvalidKey, KindInvalidKey},
	{eip712.ErrMalformedDocument, KindMalformedDocument},
	{eip712.ErrUnknownType, KindUnknownType},
	{eip712.ErrCyclicType, KindCyclicType},
	{eip712.ErrMissingField, KindMissingField},
	{eip712.ErrTypeMismatch, KindTypeMismatch},
	{sign.ErrInternal, KindInternal},
}

// KindOf returns the Kind of err. A nil error has KindNone; errors outside
// the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return KindInternal
}
