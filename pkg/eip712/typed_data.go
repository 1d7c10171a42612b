package eip712

import (
	"encoding/json"
	"fmt"
)

// TypedData is a parsed typed-data document.
type TypedData struct {
	Types       Types  `json:"types"`
	PrimaryType string `json:"primaryType"`
	Domain      Value  `json:"domain"`
	Message     Value  `json:"message"`
}

type typedDataJSON struct {
	Types       Types  `json:"types"`
	PrimaryType string `json:"primaryType"`
	Domain      *Value `json:"domain"`
	Message     *Value `json:"message"`
}

// ParseTypedData decodes a typed-data document. Required top-level keys are
// types, primaryType, domain and message. When types has no EIP712Domain
// entry one is inferred from the domain members.
func ParseTypedData(data []byte) (*TypedData, error) {
	var raw typedDataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	switch {
	case raw.Types == nil:
		return nil, fmt.Errorf("%w: missing types", ErrMalformedDocument)
	case raw.PrimaryType == "":
		return nil, fmt.Errorf("%w: missing primaryType", ErrMalformedDocument)
	case raw.Domain == nil || raw.Domain.Kind() != KindObject:
		return nil, fmt.Errorf("%w: domain must be an object", ErrMalformedDocument)
	case raw.Message == nil || raw.Message.Kind() != KindObject:
		return nil, fmt.Errorf("%w: message must be an object", ErrMalformedDocument)
	}
	if err := raw.Types.validate(); err != nil {
		return nil, err
	}

	if _, ok := raw.Types[DomainType]; !ok {
		raw.Types[DomainType] = InferDomainType(*raw.Domain)
	}

	return &TypedData{
		Types:       raw.Types,
		PrimaryType: raw.PrimaryType,
		Domain:      *raw.Domain,
		Message:     *raw.Message,
	}, nil
}

// DomainSeparator returns hashStruct(EIP712Domain, domain).
func (td *TypedData) DomainSeparator() ([]byte, error) {
	return td.domainSeparator(NewEncoder(td.Types))
}

// MessageHash returns hashStruct(primaryType, message).
func (td *TypedData) MessageHash() ([]byte, error) {
	return td.messageHash(NewEncoder(td.Types))
}

// Hash returns the EIP-712 digest that gets signed.
func (td *TypedData) Hash() ([]byte, error) {
	return td.HashWith(NewEncoder(td.Types))
}

// HashWith computes the digest with a caller-supplied Encoder, which must be
// built over td.Types.
func (td *TypedData) HashWith(enc *Encoder) ([]byte, error) {
	domainSeparator, err := td.domainSeparator(enc)
	if err != nil {
		return nil, err
	}
	messageHash, err := td.messageHash(enc)
	if err != nil {
		return nil, err
	}
	return enc.Hash([]byte{0x19, 0x01}, domainSeparator, messageHash), nil
}

func (td *TypedData) domainSeparator(enc *Encoder) ([]byte, error) {
	return enc.HashStruct(DomainType, td.Domain)
}

func (td *TypedData) messageHash(enc *Encoder) ([]byte, error) {
	return enc.HashStruct(td.PrimaryType, td.Message)
}
