package sign

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Curve is the secp256k1 signing primitive.
type Curve interface {
	// SignDigest signs a 32-byte digest with a raw 32-byte secret.
	// It fails with ErrInvalidKey if the secret is not a valid scalar.
	SignDigest(digest, secret []byte) (RawSignature, error)
}

// Curve backend names accepted by CurveByName.
const (
	CurveGeth   = "geth"
	CurveDecred = "decred"
)

// CurveByName returns the backend registered under name.
func CurveByName(name string) (Curve, error) {
	switch name {
	case CurveGeth, "":
		return EthereumCurve{}, nil
	case CurveDecred:
		return DecredCurve{}, nil
	default:
		return nil, fmt.Errorf("unsupported curve backend: %s", name)
	}
}

var (
	_ Curve = EthereumCurve{}
	_ Curve = DecredCurve{}
)

// EthereumCurve signs with go-ethereum's crypto.Sign.
type EthereumCurve struct{}

func (EthereumCurve) SignDigest(digest, secret []byte) (RawSignature, error) {
	key, err := ethcrypto.ToECDSA(secret)
	if err != nil {
		return RawSignature{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return RawSignature{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return RawSignature{R: sig[:32], S: sig[32:64], RecoveryID: sig[64]}, nil
}

// DecredCurve signs with decred's compact ECDSA signatures.
type DecredCurve struct{}

func (DecredCurve) SignDigest(digest, secret []byte) (RawSignature, error) {
	if err := ValidateSecret(secret); err != nil {
		return RawSignature{}, err
	}
	if len(digest) != DigestLength {
		return RawSignature{}, fmt.Errorf("%w: digest must be %d bytes", ErrInternal, DigestLength)
	}

	key := secp256k1.PrivKeyFromBytes(secret)
	defer key.Zero()

	// Layout: [27 + recovery id] ‖ R ‖ S for uncompressed keys.
	compact := decredecdsa.SignCompact(key, digest, false)
	if len(compact) != SignatureLength || compact[0] < recoveryIDOffset {
		return RawSignature{}, fmt.Errorf("%w: unexpected compact signature", ErrInternal)
	}
	return RawSignature{
		R:          compact[1:33],
		S:          compact[33:65],
		RecoveryID: compact[0] - recoveryIDOffset,
	}, nil
}
