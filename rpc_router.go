package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/m1ome/ex-eip712/pkg/eip712"
	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/rpc"
	"github.com/m1ome/ex-eip712/pkg/sign"
	"github.com/m1ome/ex-eip712/pkg/signing"
)

var (
	errJournalDisabled = rpc.Errorf("journal is disabled")
	errNoSecret        = rpc.Errorf("%w: secret is required: no default signer is configured", sign.ErrInvalidKey)
)

// RPCRouter exposes the signing service over the WebSocket node.
type RPCRouter struct {
	Node    *rpc.WebsocketNode
	Config  *Config
	Service *signing.Service
	Journal *JournalStore
	Metrics *Metrics

	lg     log.Logger
	tracer trace.Tracer
}

// NewRPCRouter builds the node and registers every method. A nil journal
// disables get_signatures and journaling.
func NewRPCRouter(conf *Config, service *signing.Service, journal *JournalStore, metrics *Metrics, logger log.Logger) (*RPCRouter, error) {
	r := &RPCRouter{
		Config:  conf,
		Service: service,
		Journal: journal,
		Metrics: metrics,
		lg:      logger.WithName("rpc-router"),
		tracer:  otel.Tracer("github.com/m1ome/ex-eip712/rpc"),
	}

	node, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{
		Logger:               logger,
		OnConnectHandler:     r.HandleConnect,
		OnDisconnectHandler:  r.HandleDisconnect,
		OnMessageSentHandler: r.HandleMessageSent,
		WsConnReadLimit:      conf.MaxDocumentSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC node: %w", err)
	}
	r.Node = node

	r.Node.Use(r.LoggerMiddleware)
	r.Node.Use(r.MetricsMiddleware)
	r.Node.Handle(rpc.SignMethod.String(), r.HandleSign)
	r.Node.Handle(rpc.SignMessageMethod.String(), r.HandleSignMessage)

	journalGroup := r.Node.NewGroup("journal")
	journalGroup.Use(r.JournalMiddleware)
	journalGroup.Handle(rpc.GetSignaturesMethod.String(), r.HandleGetSignatures)

	return r, nil
}

func (r *RPCRouter) HandleConnect(connectionID string) {
	r.Metrics.ConnectionsTotal.Inc()
	r.Metrics.ConnectedClients.Inc()
	r.lg.Debug("client connected", "connectionID", connectionID)
}

func (r *RPCRouter) HandleDisconnect(connectionID string) {
	r.Metrics.ConnectedClients.Dec()
	r.lg.Debug("client disconnected", "connectionID", connectionID)
}

func (r *RPCRouter) HandleMessageSent([]byte) {
	r.Metrics.MessageSent.Inc()
}

// LoggerMiddleware opens a span per request and stores a request-scoped
// logger in the context. The logger mirrors entries onto the span.
func (r *RPCRouter) LoggerMiddleware(c *rpc.Context) {
	ctx, span := r.tracer.Start(c.Context, c.Request.Req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.method", c.Request.Req.Method),
			attribute.String("rpc.connection_id", c.ConnectionID),
		),
	)
	defer span.End()

	logger := r.lg.
		WithKV("requestID", c.Request.Req.RequestID).
		WithKV("connectionID", c.ConnectionID)
	c.Context = log.SetContextLogger(ctx, logger)
	logger = log.FromContext(c.Context)

	c.Next()

	if c.Failed() {
		err := c.Response.Res.Params.Error()
		span.SetStatus(codes.Error, "request failed")
		logger.Warn("failed to handle RPC request",
			"method", c.Request.Req.Method,
			"error", err,
		)
		return
	}
	logger.Debug("handled RPC request", "method", c.Request.Req.Method)
}

func (r *RPCRouter) MetricsMiddleware(c *rpc.Context) {
	reqMethod := c.Request.Req.Method
	start := time.Now()

	c.Next()

	r.Metrics.SignDuration.WithLabelValues(reqMethod).Observe(time.Since(start).Seconds())

	outcome := "success"
	if c.Failed() {
		outcome = "failure"
	}
	r.Metrics.SignRequests.WithLabelValues(reqMethod, outcome).Inc()
}

func (r *RPCRouter) JournalMiddleware(c *rpc.Context) {
	if r.Journal == nil {
		c.Fail(errJournalDisabled, "")
		return
	}

	c.Next()
}

func (r *RPCRouter) HandleSign(c *rpc.Context) {
	method := c.Request.Req.Method

	var params rpc.SignRequest
	if err := parseParams(c.Request.Req.Params, &params); err != nil {
		r.failSign(c, method, err)
		return
	}

	document, err := params.DocumentBytes()
	if err != nil {
		r.failSign(c, method, fmt.Errorf("%w: document: %v", eip712.ErrMalformedDocument, err))
		return
	}

	secret, err := r.secretOrDefault(params.Secret)
	if err != nil {
		r.failSign(c, method, err)
		return
	}

	receipt, err := r.Service.SignTypedData(document, secret)
	if err != nil {
		r.failSign(c, method, err)
		return
	}

	r.succeedSign(c, method, receipt)
}

func (r *RPCRouter) HandleSignMessage(c *rpc.Context) {
	method := c.Request.Req.Method

	var params rpc.SignMessageRequest
	if err := parseParams(c.Request.Req.Params, &params); err != nil {
		r.failSign(c, method, err)
		return
	}

	secret, err := r.secretOrDefault(params.Secret)
	if err != nil {
		r.failSign(c, method, err)
		return
	}

	receipt, err := r.Service.SignPersonalMessage(params.Message, secret)
	if err != nil {
		r.failSign(c, method, err)
		return
	}

	r.succeedSign(c, method, receipt)
}

func (r *RPCRouter) HandleGetSignatures(c *rpc.Context) {
	logger := log.FromContext(c.Context)

	var params rpc.GetSignaturesRequest
	if err := parseParams(c.Request.Req.Params, &params); err != nil {
		c.Fail(err, "failed to parse parameters")
		return
	}

	options := &ListOptions{Offset: params.Offset, Limit: params.Limit}
	if params.Sort != "" {
		sort := SortType(params.Sort)
		options.Sort = &sort
	}

	records, err := r.Journal.List(params.Method, options)
	if err != nil {
		logger.Error("failed to list signatures", "error", err)
		c.Fail(err, "failed to get signatures")
		return
	}
	total, err := r.Journal.Count(params.Method)
	if err != nil {
		logger.Error("failed to count signatures", "error", err)
		c.Fail(err, "failed to get signatures")
		return
	}

	entries := make([]rpc.SignatureEntry, len(records))
	for i, record := range records {
		entries[i] = rpc.SignatureEntry{
			ID:           record.ID,
			Method:       record.Method,
			Digest:       record.Digest,
			Signature:    record.Signature,
			ConnectionID: record.ConnectionID,
			CreatedAt:    record.CreatedAt.UnixMilli(),
		}
	}

	r.succeed(c, rpc.GetSignaturesResponse{Signatures: entries, Total: total})
}

func (r *RPCRouter) secretOrDefault(secret string) (string, error) {
	if secret != "" {
		return secret, nil
	}
	if r.Config.SignerPrivateKey == "" {
		return "", errNoSecret
	}
	return r.Config.SignerPrivateKey, nil
}

func (r *RPCRouter) succeedSign(c *rpc.Context, method string, receipt signing.Receipt) {
	if r.Journal != nil {
		if _, err := r.Journal.Record(method, receipt, c.ConnectionID); err != nil {
			log.FromContext(c.Context).Error("failed to journal signature", "error", err)
		}
	}

	r.succeed(c, rpc.SignResponse{
		Signature: receipt.Signature.String(),
		Digest:    hexutil.Encode(receipt.Digest),
	})
}

func (r *RPCRouter) succeed(c *rpc.Context, response any) {
	params, err := rpc.NewParams(response)
	if err != nil {
		log.FromContext(c.Context).Error("failed to build response params", "error", err)
		c.Fail(err, "")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}

// failSign reports a taxonomy error to the client with its message intact.
func (r *RPCRouter) failSign(c *rpc.Context, method string, err error) {
	r.Metrics.SignFailures.WithLabelValues(method, string(signing.KindOf(err))).Inc()
	c.Fail(rpc.NewError(err), "")
}

func getValidator() *validator.Validate {
	validate := validator.New()

	if err := validate.RegisterValidation("hexkey", func(fl validator.FieldLevel) bool {
		_, err := signing.DecodeSecret(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register hexkey validation: %v", err))
	}
	return validate
}

// parseParams decodes params into unmarshalTo and validates it. Failures
// are client-facing.
func parseParams(params rpc.Params, unmarshalTo any) error {
	if err := params.Translate(unmarshalTo); err != nil {
		return rpc.Errorf("invalid parameters: %v", err)
	}

	err := getValidator().Struct(unmarshalTo)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			if fe.Tag() == "hexkey" {
				return rpc.Errorf("%w: %s", signing.ErrInvalidHex, fe.Field())
			}
		}
		fe := validationErrs[0]
		return rpc.Errorf("invalid parameters: %s failed %s", fe.Field(), fe.Tag())
	}
	return rpc.Errorf("invalid parameters: %v", err)
}
