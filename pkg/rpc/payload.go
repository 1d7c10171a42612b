package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Payload is the body of every request and response. On the wire it is the
// compact array [RequestID, Method, Params, Timestamp].
type Payload struct {
	// RequestID correlates a response with its request. Zero is used for
	// messages that answer nothing.
	RequestID uint64 `json:"request_id"`
	// Method is the RPC method, or "error" for failed calls.
	Method string `json:"method"`
	// Params holds method-specific arguments or results.
	Params Params `json:"params"`
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp uint64 `json:"ts"`
}

// payloadArity is the length of the wire array.
const payloadArity = 4

// NewPayload creates a Payload stamped with the current time.
func NewPayload(id uint64, method string, params Params) Payload {
	return Payload{
		RequestID: id,
		Method:    method,
		Params:    params.orEmpty(),
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// UnmarshalJSON decodes the array form. Every element must be present and
// of its field's type.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("payload is not a JSON array: %w", err)
	}
	if len(elems) != payloadArity {
		return fmt.Errorf("payload has %d elements, expected %d", len(elems), payloadArity)
	}

	fields := [payloadArity]struct {
		name string
		dst  any
	}{
		{"request_id", &p.RequestID},
		{"method", &p.Method},
		{"params", &p.Params},
		{"ts", &p.Timestamp},
	}
	for i, f := range fields {
		if err := json.Unmarshal(elems[i], f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
	}
	return nil
}

// MarshalJSON always emits the array form with params as an object.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal([payloadArity]any{p.RequestID, p.Method, p.Params.orEmpty(), p.Timestamp})
}

// Params maps parameter names to their raw JSON values. Values stay raw
// until Translate decodes them into a typed request.
type Params map[string]json.RawMessage

func (p Params) orEmpty() Params {
	if p == nil {
		return Params{}
	}
	return p
}

// NewParams builds Params from any value that marshals to a JSON object.
//
//	params, err := rpc.NewParams(rpc.SignResponse{Signature: sig, Digest: digest})
func NewParams(v any) (Params, error) {
	params := Params{}
	if v == nil {
		return params, nil
	}
	if err := recode(v, &params); err != nil {
		return nil, fmt.Errorf("params must encode as a JSON object: %w", err)
	}
	return params, nil
}

// Translate decodes the params into v, which must be a pointer.
//
//	var req rpc.SignMessageRequest
//	if err := c.Request.Req.Params.Translate(&req); err != nil {
//		c.Fail(err, "invalid parameters")
//		return
//	}
func (p Params) Translate(v any) error {
	if err := recode(p, v); err != nil {
		return fmt.Errorf("params do not match the request shape: %w", err)
	}
	return nil
}

// recode moves src into dst through its JSON form.
func recode(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Error returns the message stored under the "error" key, or nil when the
// key is missing or does not hold a string.
func (p Params) Error() error {
	raw, ok := p[errorParamKey]
	if !ok {
		return nil
	}
	var msg string
	if json.Unmarshal(raw, &msg) != nil {
		return nil
	}
	return errors.New(msg)
}
