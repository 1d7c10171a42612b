package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errorParamKey holds the message in error params.
const errorParamKey = "error"

// Dialer errors.
var (
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("not connected to server")
	ErrConnectionTimeout = errors.New("websocket connection timeout")
	ErrReadingMessage    = errors.New("error reading message")

	ErrNilRequest        = errors.New("nil request")
	ErrMarshalingRequest = errors.New("error marshaling request")
	ErrSendingRequest    = errors.New("error sending request")
	ErrNoResponse        = errors.New("no response received")
	ErrSendingPing       = errors.New("error sending ping")

	ErrDialingWebsocket = errors.New("error dialing websocket server")
)

// Error is an error whose message is safe to send to the client. Any other
// error passed to Context.Fail is replaced by the fallback message.
//
//	return rpc.Errorf("unsupported sort order: %s", sort)
type Error struct {
	err error
}

// Errorf creates a client-facing Error.
func Errorf(format string, args ...any) Error {
	return Error{err: fmt.Errorf(format, args...)}
}

// NewError marks err as client-facing. errors.Is still sees the wrapped error.
func NewError(err error) Error {
	return Error{err: err}
}

func (e Error) Error() string {
	return e.err.Error()
}

func (e Error) Unwrap() error {
	return e.err
}

// NewErrorParams returns {"error": errMsg}.
func NewErrorParams(errMsg string) Params {
	raw, _ := json.Marshal(errMsg) // marshalling a string cannot fail
	return Params{errorParamKey: raw}
}
