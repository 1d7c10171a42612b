package eip712

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Hasher maps the concatenation of its inputs to a 32-byte Keccak-256 digest.
type Hasher func(data ...[]byte) []byte

// LegacyKeccak256 is a Hasher built on golang.org/x/crypto/sha3.
func LegacyKeccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithHasher replaces the default go-ethereum Keccak-256.
func WithHasher(h Hasher) Option {
	return func(e *Encoder) {
		if h != nil {
			e.hash = h
		}
	}
}

// Encoder hashes values against a fixed set of types. Type hashes are cached,
// so an Encoder should be reused for every value of the same document.
// It is safe for concurrent use.
type Encoder struct {
	types Types
	hash  Hasher

	mu         sync.RWMutex
	typeHashes map[string][]byte
}

// NewEncoder creates an Encoder for types.
func NewEncoder(types Types, opts ...Option) *Encoder {
	e := &Encoder{
		types:      types,
		hash:       crypto.Keccak256,
		typeHashes: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hash applies the configured Keccak-256 implementation.
func (e *Encoder) Hash(data ...[]byte) []byte {
	return e.hash(data...)
}

// EncodeType returns the canonical type string of name.
func (e *Encoder) EncodeType(name string) (string, error) {
	return e.types.EncodeType(name)
}

// TypeHash returns the cached keccak256 of the canonical type string of name.
func (e *Encoder) TypeHash(name string) ([]byte, error) {
	e.mu.RLock()
	cached, ok := e.typeHashes[name]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	encoded, err := e.types.EncodeType(name)
	if err != nil {
		return nil, err
	}
	h := e.hash([]byte(encoded))

	e.mu.Lock()
	e.typeHashes[name] = h
	e.mu.Unlock()
	return h, nil
}

// HashStruct returns keccak256(typeHash(name) ‖ encodeData(name, v)).
func (e *Encoder) HashStruct(name string, v Value) ([]byte, error) {
	return e.hashStruct(name, v, name)
}

// EncodeData returns the 32-byte encodings of the members of v, in the
// declaration order of name.
func (e *Encoder) EncodeData(name string, v Value) ([]byte, error) {
	if _, err := e.TypeHash(name); err != nil {
		return nil, err
	}
	return e.encodeData(name, v, name)
}

func (e *Encoder) hashStruct(name string, v Value, path string) ([]byte, error) {
	typeHash, err := e.TypeHash(name)
	if err != nil {
		return nil, err
	}
	data, err := e.encodeData(name, v, path)
	if err != nil {
		return nil, err
	}
	return e.hash(typeHash, data), nil
}

func (e *Encoder) encodeData(name string, v Value, path string) ([]byte, error) {
	if v.Kind() != KindObject {
		return nil, fmt.Errorf("%w: %s: expected object for %s, got %s", ErrTypeMismatch, path, name, v.Kind())
	}

	fields := e.types[name]
	out := make([]byte, 0, 32*len(fields))
	for _, f := range fields {
		fieldPath := path + "." + f.Name
		fv, ok := v.Field(f.Name)
		if !ok || fv.Kind() == KindNull {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, fieldPath)
		}
		word, err := e.encodeValue(f.Type, fv, fieldPath)
		if err != nil {
			return nil, err
		}
		out = append(out, word...)
	}
	return out, nil
}

// encodeValue returns the 32-byte word for v declared as typ.
func (e *Encoder) encodeValue(typ string, v Value, path string) ([]byte, error) {
	if v.Kind() == KindNull {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
	}

	elemType, length, isArray, err := splitArray(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownType, path, err)
	}
	if isArray {
		items, ok := v.Items()
		if !ok {
			return nil, fmt.Errorf("%w: %s: expected array for %s, got %s", ErrTypeMismatch, path, typ, v.Kind())
		}
		if length >= 0 && len(items) != length {
			return nil, fmt.Errorf("%w: %s: expected %d elements for %s, got %d", ErrTypeMismatch, path, length, typ, len(items))
		}
		buf := make([]byte, 0, 32*len(items))
		for i, item := range items {
			word, err := e.encodeValue(elemType, item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			buf = append(buf, word...)
		}
		return e.hash(buf), nil
	}

	if IsAtomic(typ) {
		return e.encodeAtomic(typ, v, path)
	}
	if _, ok := e.types[typ]; !ok {
		return nil, fmt.Errorf("%w: %s (at %s)", ErrUnknownType, typ, path)
	}
	return e.hashStruct(typ, v, path)
}

func (e *Encoder) encodeAtomic(typ string, v Value, path string) ([]byte, error) {
	switch typ {
	case "string":
		s, ok := v.Str()
		if !ok {
			return nil, fmt.Errorf("%w: %s: expected string, got %s", ErrTypeMismatch, path, v.Kind())
		}
		return e.hash([]byte(s)), nil

	case "bytes":
		b, err := decodeBytes(v, path)
		if err != nil {
			return nil, err
		}
		return e.hash(b), nil

	case "bool":
		b, ok := v.Bool()
		if !ok {
			return nil, fmt.Errorf("%w: %s: expected bool, got %s", ErrTypeMismatch, path, v.Kind())
		}
		word := make([]byte, 32)
		if b {
			word[31] = 1
		}
		return word, nil

	case "address":
		s, ok := v.Str()
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %s: invalid address", ErrTypeMismatch, path)
		}
		return common.LeftPadBytes(common.HexToAddress(s).Bytes(), 32), nil
	}

	if n, ok := fixedBytesWidth(typ); ok {
		b, err := decodeBytes(v, path)
		if err != nil {
			return nil, err
		}
		if len(b) != n {
			return nil, fmt.Errorf("%w: %s: expected %d bytes for %s, got %d", ErrTypeMismatch, path, n, typ, len(b))
		}
		return common.RightPadBytes(b, 32), nil
	}

	if bits, signed, ok := intWidth(typ); ok {
		x, err := parseInteger(v, path)
		if err != nil {
			return nil, err
		}
		return encodeInteger(x, bits, signed, typ, path)
	}

	return nil, fmt.Errorf("%w: %s (at %s)", ErrUnknownType, typ, path)
}

func decodeBytes(v Value, path string) ([]byte, error) {
	s, ok := v.Str()
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected hex string, got %s", ErrTypeMismatch, path, v.Kind())
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHex, path, err)
	}
	return b, nil
}

const maxExponent = 80

// parseInteger accepts a JSON number literal or decimal / 0x-hex text with an
// optional leading minus sign.
func parseInteger(v Value, path string) (*big.Int, error) {
	if n, ok := v.Number(); ok {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s is not an integer", ErrTypeMismatch, path, n)
		}
		if d.IsZero() {
			return new(big.Int), nil
		}
		// Anything scaled by more than 10^maxExponent overflows 256 bits.
		if d.Exponent() > maxExponent || d.Exponent() < -maxExponent {
			return nil, fmt.Errorf("%w: %s: %s out of range", ErrTypeMismatch, path, n)
		}
		if !d.IsInteger() {
			return nil, fmt.Errorf("%w: %s: %s is not an integer", ErrTypeMismatch, path, n)
		}
		return d.BigInt(), nil
	}

	s, ok := v.Str()
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected integer, got %s", ErrTypeMismatch, path, v.Kind())
	}
	digits, negative := strings.CutPrefix(s, "-")
	if digits == "" {
		return nil, fmt.Errorf("%w: %s: empty integer", ErrTypeMismatch, path)
	}
	if !isUnsignedLiteral(digits) {
		return nil, fmt.Errorf("%w: %s: invalid integer %q", ErrTypeMismatch, path, s)
	}
	x, ok := math.ParseBig256(digits)
	if !ok {
		return nil, fmt.Errorf("%w: %s: invalid integer %q", ErrTypeMismatch, path, s)
	}
	if negative {
		x.Neg(x)
	}
	return x, nil
}

// isUnsignedLiteral reports whether s is bare decimal digits or 0x-prefixed
// hex digits. Signs are handled by the caller, exactly once.
func isUnsignedLiteral(s string) bool {
	isDigit := func(r rune) bool { return '0' <= r && r <= '9' }
	if body, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s = body
		isDigit = func(r rune) bool { return '0' <= r && r <= '9' || 'a' <= r && r <= 'f' }
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

// encodeInteger range-checks x against the declared width and returns its
// big-endian two's-complement 256-bit word.
func encodeInteger(x *big.Int, bits int, signed bool, typ, path string) ([]byte, error) {
	var fits bool
	switch {
	case !signed:
		fits = x.Sign() >= 0 && x.BitLen() <= bits
	case x.Sign() >= 0:
		fits = x.BitLen() <= bits-1
	default:
		// -2^(bits-1) is the smallest value, i.e. |x|-1 must fit in bits-1.
		fits = new(big.Int).Sub(new(big.Int).Abs(x), big.NewInt(1)).BitLen() <= bits-1
	}
	if !fits {
		return nil, fmt.Errorf("%w: %s: %s out of range for %s", ErrTypeMismatch, path, x, typ)
	}

	word, overflow := uint256.FromBig(new(big.Int).Abs(x))
	if overflow {
		return nil, fmt.Errorf("%w: %s: %s out of range for %s", ErrTypeMismatch, path, x, typ)
	}
	if x.Sign() < 0 {
		word.Neg(word)
	}
	b := word.Bytes32()
	return b[:], nil
}
