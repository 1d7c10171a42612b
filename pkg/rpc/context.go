package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler processes a request. Middleware calls c.Next to continue the chain.
type Handler func(c *Context)

// Context carries one request through its handler chain.
type Context struct {
	// Context is cancelled when the connection closes.
	Context context.Context
	// ConnectionID identifies the connection the request arrived on.
	ConnectionID string
	// Request is the decoded client request.
	Request Request
	// Response is filled by Succeed or Fail.
	Response Response

	handlers []Handler
}

// Next runs the next handler in the chain, if any.
//
//	func timing(c *rpc.Context) {
//		start := time.Now()
//		c.Next()
//		observe(c.Request.Req.Method, time.Since(start))
//	}
func (c *Context) Next() {
	if len(c.handlers) == 0 {
		return
	}

	handler := c.handlers[0]
	c.handlers = c.handlers[1:]
	handler(c)
}

// Succeed sets a successful response.
func (c *Context) Succeed(method string, params Params) {
	c.Response.Res = NewPayload(
		c.Request.Req.RequestID,
		method,
		params,
	)
}

// Fail sets an error response. The client sees err's message when err is an
// Error, otherwise fallbackMessage, otherwise a generic message.
func (c *Context) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	var rpcErr Error
	if errors.As(err, &rpcErr) {
		message = rpcErr.Error()
	}
	if message == "" {
		message = defaultNodeErrorMessage
	}

	c.Response = NewErrorResponse(
		c.Request.Req.RequestID,
		message,
	)
}

// Failed reports whether the response is an error.
func (c *Context) Failed() bool {
	return c.Response.Res.Method == ErrorMethod.String()
}

// GetRawResponse marshals the response. A chain that set no response
// produces an internal error response.
func (c *Context) GetRawResponse() ([]byte, error) {
	if c.Response.Res.Method == "" {
		c.Fail(nil, "internal server error: no response from handler")
	}

	return prepareRawResponse(c.Response.Res)
}

func prepareRawResponse(payload Payload) ([]byte, error) {
	resMessageBytes, err := json.Marshal(Response{Res: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response message: %w", err)
	}

	return resMessageBytes, nil
}
