// Package signing wires the typed-data and personal-message digests to a
// secp256k1 curve and returns Ethereum-compatible signatures.
//
// Each call runs one linear pipeline: decode the hex secret, hash the input,
// sign the digest and normalize the signature. Any failure short-circuits the
// pipeline; Sign and SignMessage report it as a tagged Result instead of an
// error so they can be handed to host callers unchanged.
//
//	svc := signing.NewService(sign.EthereumCurve{}, logger)
//	res := svc.Sign(document, "ac0974...ff80")
//	if res.Status == signing.StatusError {
//	    // res.Value holds the cause
//	}
//
// KindOf maps any returned error to its Kind, which is stable enough to be
// used as a metrics label.
package signing
