package rpc

// Request is a client call: {"req": [id, method, params, ts]}.
type Request struct {
	Req Payload `json:"req"`
}

// NewRequest wraps payload in a Request.
func NewRequest(payload Payload) Request {
	return Request{Req: payload}
}

// Response is a server reply: {"res": [id, method, params, ts]}.
// RequestID matches the request it answers.
type Response struct {
	Res Payload `json:"res"`
}

// NewResponse wraps payload in a Response.
func NewResponse(payload Payload) Response {
	return Response{Res: payload}
}

// NewErrorResponse builds a response with method "error" and
// params {"error": errMsg}.
func NewErrorResponse(requestID uint64, errMsg string) Response {
	return NewResponse(NewPayload(requestID, ErrorMethod.String(), NewErrorParams(errMsg)))
}

// Error returns the error carried by the response, or nil when the call
// succeeded.
func (r Response) Error() error {
	if r.Res.Method != ErrorMethod.String() {
		return nil
	}

	return r.Res.Params.Error()
}
