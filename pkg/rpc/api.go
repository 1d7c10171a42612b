package rpc

import "encoding/json"

// Method is an RPC method name.
type Method string

func (m Method) String() string {
	return string(m)
}

const (
	// PingMethod checks that the connection is alive.
	PingMethod Method = "ping"
	// PongMethod answers PingMethod.
	PongMethod Method = "pong"
	// ErrorMethod marks a response carrying an error.
	ErrorMethod Method = "error"

	// SignMethod signs an EIP-712 typed-data document.
	SignMethod Method = "sign"
	// SignMessageMethod signs a personal_sign text message.
	SignMessageMethod Method = "sign_message"
	// GetSignaturesMethod lists journaled signatures.
	GetSignaturesMethod Method = "get_signatures"
)

// SignRequest holds the params of SignMethod. Document is either the
// typed-data JSON object itself or a JSON string containing it.
type SignRequest struct {
	Document json.RawMessage `json:"document" validate:"required"`
	Secret   string          `json:"secret,omitempty" validate:"omitempty,hexkey"`
}

// DocumentBytes returns the typed-data document, unquoting it when it was
// sent as a JSON string.
func (r SignRequest) DocumentBytes() ([]byte, error) {
	if len(r.Document) > 0 && r.Document[0] == '"' {
		var text string
		if err := json.Unmarshal(r.Document, &text); err != nil {
			return nil, err
		}
		return []byte(text), nil
	}
	return r.Document, nil
}

// SignMessageRequest holds the params of SignMessageMethod.
type SignMessageRequest struct {
	Message string `json:"message"`
	Secret  string `json:"secret,omitempty" validate:"omitempty,hexkey"`
}

// SignResponse is returned by SignMethod and SignMessageMethod.
type SignResponse struct {
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
}

// GetSignaturesRequest holds the params of GetSignaturesMethod.
type GetSignaturesRequest struct {
	Method string `json:"method,omitempty" validate:"omitempty,oneof=sign sign_message"`
	Offset uint32 `json:"offset,omitempty"`
	Limit  uint32 `json:"limit,omitempty" validate:"omitempty,max=100"`
	Sort   string `json:"sort,omitempty" validate:"omitempty,oneof=asc desc"`
}

// SignatureEntry is a journaled signature as seen by clients.
type SignatureEntry struct {
	ID           uint   `json:"id"`
	Method       string `json:"method"`
	Digest       string `json:"digest"`
	Signature    string `json:"signature"`
	ConnectionID string `json:"connection_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// GetSignaturesResponse is returned by GetSignaturesMethod.
type GetSignaturesResponse struct {
	Signatures []SignatureEntry `json:"signatures"`
	Total      int64            `json:"total"`
}
