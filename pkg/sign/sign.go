package sign

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// SignatureLength is the size of the r ‖ s ‖ v wire form.
	SignatureLength = 65
	// SecretLength is the size of a raw secp256k1 private key.
	SecretLength = 32
	// DigestLength is the size of the hashes accepted for signing.
	DigestLength = 32

	recoveryIDOffset = 27
)

var (
	// ErrInvalidKey is returned when the secret is not a valid curve scalar.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInternal is returned when the curve primitive violates its contract.
	ErrInternal = errors.New("internal error")
)

// Signer signs 32-byte digests with a bound secret.
type Signer interface {
	Sign(digest []byte) (Signature, error)
}

// RawSignature is the output of the curve primitive.
type RawSignature struct {
	R          []byte
	S          []byte
	RecoveryID byte
}

// Signature is the 65-byte r ‖ s ‖ v signature.
type Signature []byte

// V returns the last byte of the signature, 27 or 28 for a normalized one.
func (s Signature) V() byte {
	if len(s) != SignatureLength {
		return 0
	}
	return s[SignatureLength-1]
}

// MarshalJSON implements the json.Marshaler interface, encoding the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// String implements the fmt.Stringer interface.
func (s Signature) String() string {
	return hexutil.Encode(s)
}

// Normalize packs a raw signature into r ‖ s ‖ v. Components shorter than
// 32 bytes are left-padded; a recovery id other than 0 or 1 means the curve
// primitive is broken and yields ErrInternal.
func Normalize(raw RawSignature) (Signature, error) {
	if raw.RecoveryID > 1 {
		return nil, fmt.Errorf("%w: unexpected recovery id %d", ErrInternal, raw.RecoveryID)
	}
	if len(raw.R) > 32 || len(raw.S) > 32 {
		return nil, fmt.Errorf("%w: signature component longer than 32 bytes", ErrInternal)
	}

	sig := make(Signature, SignatureLength)
	copy(sig[32-len(raw.R):32], raw.R)
	copy(sig[64-len(raw.S):64], raw.S)
	sig[64] = raw.RecoveryID + recoveryIDOffset
	return sig, nil
}

// ValidateSecret checks that secret is 32 bytes encoding a scalar in [1, n-1].
func ValidateSecret(secret []byte) error {
	if len(secret) != SecretLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, SecretLength, len(secret))
	}

	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(secret)
	defer scalar.Zero()
	if overflow {
		return fmt.Errorf("%w: scalar exceeds the curve order", ErrInvalidKey)
	}
	if scalar.IsZero() {
		return fmt.Errorf("%w: scalar is zero", ErrInvalidKey)
	}
	return nil
}

var _ Signer = (*CurveSigner)(nil)

// CurveSigner binds a secret to a Curve.
type CurveSigner struct {
	curve  Curve
	secret []byte
}

// NewSigner validates secret and binds it to curve.
func NewSigner(curve Curve, secret []byte) (*CurveSigner, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	return &CurveSigner{
		curve:  curve,
		secret: append([]byte(nil), secret...),
	}, nil
}

// Sign signs a 32-byte digest and normalizes the result.
func (s *CurveSigner) Sign(digest []byte) (Signature, error) {
	if len(digest) != DigestLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", DigestLength, len(digest))
	}
	raw, err := s.curve.SignDigest(digest, s.secret)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}
