// Package rpc is the WebSocket transport of the signing service.
//
// Messages are JSON objects wrapping a compact array payload:
//
//	request:  {"req": [requestId, method, params, timestamp]}
//	response: {"res": [requestId, method, params, timestamp]}
//
// A failed call is answered with method "error" and params {"error": "<message>"}.
//
// Server side, WebsocketNode routes requests through middleware and handlers:
//
//	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{Logger: logger})
//	node.Use(metricsMiddleware)
//	node.Handle(rpc.SignMessageMethod.String(), func(c *rpc.Context) {
//		var req rpc.SignMessageRequest
//		if err := c.Request.Req.Params.Translate(&req); err != nil {
//			c.Fail(err, "invalid parameters")
//			return
//		}
//		...
//		c.Succeed(c.Request.Req.Method, params)
//	})
//	http.Handle("/ws", node)
//
// Handlers choose what clients see: errors built with Errorf or NewError are
// sent verbatim, other errors are replaced by the fallback message given to
// Context.Fail.
//
// Client side, WebsocketDialer correlates responses with calls by request ID:
//
//	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)
//	err := dialer.Dial(ctx, "ws://localhost:8000/ws", func(err error) {})
//	params, _ := rpc.NewParams(rpc.SignMessageRequest{Message: "hello"})
//	req := rpc.NewRequest(rpc.NewPayload(dialer.NextRequestID(), rpc.SignMessageMethod.String(), params))
//	res, err := dialer.Call(ctx, &req)
//	if err == nil {
//		err = res.Error()
//	}
package rpc
