// Package eip712 implements EIP-712 typed structured data hashing.
//
// A typed-data document carries a type schema, a primary type name, a domain
// value and a message value:
//
//	{
//	  "types": {
//	    "EIP712Domain": [{"name": "name", "type": "string"}, ...],
//	    "Mail": [{"name": "from", "type": "Person"}, ...]
//	  },
//	  "primaryType": "Mail",
//	  "domain": {"name": "Ether Mail", ...},
//	  "message": {"from": {...}, ...}
//	}
//
// The digest that gets signed is
//
//	keccak256(0x19 ‖ 0x01 ‖ hashStruct(EIP712Domain, domain) ‖ hashStruct(primaryType, message))
//
// where hashStruct(T, v) = keccak256(typeHash(T) ‖ encodeData(T, v)).
//
// # Basic Usage
//
//	td, err := eip712.ParseTypedData(document)
//	if err != nil {
//	    return err
//	}
//	digest, err := td.Hash()
//
// # Errors
//
// Every failure wraps one of the package sentinels so callers can classify it
// with errors.Is: ErrMalformedDocument, ErrUnknownType, ErrCyclicType,
// ErrMissingField, ErrTypeMismatch and ErrInvalidHex. The wrapped message
// carries the dotted path of the offending value, e.g.
// "type mismatch: Mail.from.wallet: invalid address".
//
// # Hashing Backend
//
// Keccak-256 defaults to go-ethereum's crypto.Keccak256. An Encoder can be
// built with WithHasher to use another implementation, for example
// LegacyKeccak256 from golang.org/x/crypto/sha3.
package eip712
