package signing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/m1ome/ex-eip712/pkg/eip191"
	"github.com/m1ome/ex-eip712/pkg/eip712"
	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/sign"
)

// Status tags a Result.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the tagged outcome handed to host callers: the signature hex on
// success, the human-readable cause on failure.
type Result struct {
	Status Status `json:"status"`
	Value  string `json:"value"`
}

// OK reports whether the result carries a signature.
func (r Result) OK() bool { return r.Status == StatusOK }

func newResult(receipt Receipt, err error) Result {
	if err != nil {
		return Result{Status: StatusError, Value: err.Error()}
	}
	return Result{Status: StatusOK, Value: receipt.Signature.String()}
}

// Receipt is a successful signing outcome.
type Receipt struct {
	Digest    []byte
	Signature sign.Signature
}

// Service signs typed data and personal messages. It holds no per-call state
// and is safe for concurrent use.
type Service struct {
	curve  sign.Curve
	logger log.Logger
}

// NewService creates a Service over curve. A nil curve selects EthereumCurve
// and a nil logger discards output.
func NewService(curve sign.Curve, logger log.Logger) *Service {
	if curve == nil {
		curve = sign.EthereumCurve{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Service{
		curve:  curve,
		logger: logger.WithName("signing"),
	}
}

// Sign hashes an EIP-712 document and signs it with secretHex.
func (s *Service) Sign(document, secretHex string) Result {
	return newResult(s.SignTypedData([]byte(document), secretHex))
}

// SignMessage hashes text with the personal_sign prefix and signs it.
func (s *Service) SignMessage(text, secretHex string) Result {
	return newResult(s.SignPersonalMessage(text, secretHex))
}

// SignTypedData runs decode → parse → hash → sign → normalize.
func (s *Service) SignTypedData(document []byte, secretHex string) (Receipt, error) {
	secret, err := DecodeSecret(secretHex)
	if err != nil {
		return s.fail("sign", err)
	}

	td, err := eip712.ParseTypedData(document)
	if err != nil {
		return s.fail("sign", err)
	}
	digest, err := td.Hash()
	if err != nil {
		return s.fail("sign", err)
	}

	return s.sign("sign", digest, secret)
}

// SignPersonalMessage runs decode → hash → sign → normalize.
func (s *Service) SignPersonalMessage(text, secretHex string) (Receipt, error) {
	secret, err := DecodeSecret(secretHex)
	if err != nil {
		return s.fail("sign_message", err)
	}

	return s.sign("sign_message", eip191.HashPersonalMessage(text), secret)
}

func (s *Service) sign(op string, digest, secret []byte) (Receipt, error) {
	signer, err := sign.NewSigner(s.curve, secret)
	if err != nil {
		return s.fail(op, err)
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return s.fail(op, err)
	}
	s.logger.Debug("digest signed", "operation", op, "v", sig.V())
	return Receipt{Digest: digest, Signature: sig}, nil
}

func (s *Service) fail(op string, err error) (Receipt, error) {
	s.logger.Debug("signing failed", "operation", op, "kind", KindOf(err), "error", err)
	return Receipt{}, err
}

// DecodeSecret decodes a hex private key. The 0x prefix is optional and
// either case is accepted. Length is checked when the signer is bound.
func DecodeSecret(secretHex string) ([]byte, error) {
	body := secretHex
	if len(body) >= 2 && (body[:2] == "0x" || body[:2] == "0X") {
		body = body[2:]
	}

	secret, err := hexutil.Decode("0x" + body)
	if err != nil {
		return nil, fmt.Errorf("%w: secret: %v", ErrInvalidHex, err)
	}
	return secret, nil
}
