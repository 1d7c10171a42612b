// Package sign turns 32-byte digests into Ethereum-style secp256k1 signatures.
//
// Signing is split into two steps. A Curve produces a RawSignature, the
// (r, s, recovery id) triple of the elliptic-curve primitive. Normalize then
// packs it into the 65-byte wire form
//
//	r (32 bytes) ‖ s (32 bytes) ‖ v (1 byte, recovery id + 27)
//
// which Signature renders as 0x-prefixed lowercase hex.
//
// Two curve backends are available and produce identical, RFC6979
// deterministic signatures:
//
//   - EthereumCurve, built on go-ethereum's crypto package (default)
//   - DecredCurve, built on github.com/decred/dcrd/dcrec/secp256k1/v4
//
// Example:
//
//	signer, err := sign.NewSigner(sign.EthereumCurve{}, secret)
//	if err != nil {
//	    return err
//	}
//	sig, err := signer.Sign(digest)
//	fmt.Println(sig) // 0x...1b
package sign
