// Package eip191 computes the legacy personal_sign message digest.
package eip191

import (
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
)

// PersonalMessagePrefix is prepended, followed by the decimal byte length of
// the message, before hashing.
const PersonalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalMessage returns the exact bytes that get hashed for text.
func PersonalMessage(text string) []byte {
	return []byte(PersonalMessagePrefix + strconv.Itoa(len(text)) + text)
}

// HashPersonalMessage returns keccak256(prefix ‖ len(text) ‖ text).
func HashPersonalMessage(text string) []byte {
	return crypto.Keccak256(PersonalMessage(text))
}
