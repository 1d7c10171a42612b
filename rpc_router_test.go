package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/m1ome/ex-eip712/pkg/eip712"
	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/rpc"
	"github.com/m1ome/ex-eip712/pkg/sign"
	"github.com/m1ome/ex-eip712/pkg/signing"
)

const (
	mailDocument = `{"types":{"EIP712Domain":[{"name":"name","type":"string"},{"name":"version","type":"string"},{"name":"chainId","type":"uint256"},{"name":"verifyingContract","type":"address"}],"Person":[{"name":"name","type":"string"},{"name":"wallet","type":"address"}],"Mail":[{"name":"from","type":"Person"},{"name":"to","type":"Person"},{"name":"contents","type":"string"}]},"primaryType":"Mail","domain":{"name":"Ether Mail","version":"1","chainId":"0x4","verifyingContract":"0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"},"message":{"from":{"name":"Cow","wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},"to":{"name":"Bob","wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},"contents":"Hello, Bob!"}}`

	mailSignature    = "0xd853c5daec0c31492ae3f9f528105b4c29724b9b386231489d644b773c6d3afe48e4b120efc4c8a5e69bcb60cd4975ff1d3f196b18bf8d1a7df25db9c82cb0d01c"
	messageSignature = "0x1b91d677e947b77aa817a4299eff51c94bf471a05502c0f3336c3f00252f669d1efb75487fc4910ff5751d3ce7611edf93b69b78b93ee7bdb0e3c7cbd4e8a1931b"
)

type testRouter struct {
	router  *RPCRouter
	metrics *Metrics
	url     string
}

func newTestConfig() *Config {
	return &Config{
		CurveBackend:    sign.CurveGeth,
		MaxDocumentSize: 1 << 20,
		curve:           sign.EthereumCurve{},
	}
}

func setupTestRPCRouter(t *testing.T, config *Config, journal *JournalStore) *testRouter {
	t.Helper()

	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	service := signing.NewService(config.curve, log.NewNoopLogger())

	router, err := NewRPCRouter(config, service, journal, metrics, log.NewNoopLogger())
	require.NoError(t, err)

	server := httptest.NewServer(router.Node)
	t.Cleanup(server.Close)

	return &testRouter{
		router:  router,
		metrics: metrics,
		url:     "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (tr *testRouter) dial(t *testing.T) *rpc.WebsocketDialer {
	t.Helper()

	cfg := rpc.DefaultWebsocketDialerConfig
	cfg.PingInterval = 0
	dialer := rpc.NewWebsocketDialer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, dialer.Dial(ctx, tr.url, func(error) {}))
	return dialer
}

func callRPC(t *testing.T, dialer *rpc.WebsocketDialer, method rpc.Method, params any) *rpc.Response {
	t.Helper()

	p, err := rpc.NewParams(params)
	require.NoError(t, err)
	req := rpc.NewRequest(rpc.NewPayload(dialer.NextRequestID(), method.String(), p))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := dialer.Call(ctx, &req)
	require.NoError(t, err)
	return res
}

func signResponse(t *testing.T, res *rpc.Response) rpc.SignResponse {
	t.Helper()

	require.NoError(t, res.Error())
	var out rpc.SignResponse
	require.NoError(t, res.Res.Params.Translate(&out))
	return out
}

func TestRPCRouter_Sign(t *testing.T) {
	t.Parallel()

	tr := setupTestRPCRouter(t, newTestConfig(), nil)
	dialer := tr.dial(t)

	td, err := eip712.ParseTypedData([]byte(mailDocument))
	require.NoError(t, err)
	digest, err := td.Hash()
	require.NoError(t, err)

	t.Run("document as object", func(t *testing.T) {
		res := callRPC(t, dialer, rpc.SignMethod, rpc.SignRequest{
			Document: json.RawMessage(mailDocument),
			Secret:   testSecret,
		})
		assert.Equal(t, rpc.SignMethod.String(), res.Res.Method)

		out := signResponse(t, res)
		assert.Equal(t, mailSignature, out.Signature)
		assert.Equal(t, hexutil.Encode(digest), out.Digest)
	})

	t.Run("document as string", func(t *testing.T) {
		quoted, err := json.Marshal(mailDocument)
		require.NoError(t, err)

		out := signResponse(t, callRPC(t, dialer, rpc.SignMethod, rpc.SignRequest{
			Document: quoted,
			Secret:   "0x" + testSecret,
		}))
		assert.Equal(t, mailSignature, out.Signature)
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(tr.metrics.SignRequests.WithLabelValues("sign", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.ConnectedClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.ConnectionsTotal))
}

func TestRPCRouter_SignMessage(t *testing.T) {
	t.Parallel()

	tr := setupTestRPCRouter(t, newTestConfig(), nil)
	dialer := tr.dial(t)

	out := signResponse(t, callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{
		Message: "100:200:300",
		Secret:  testSecret,
	}))
	assert.Equal(t, messageSignature, out.Signature)
	assert.Equal(t, hexutil.Encode(accounts.TextHash([]byte("100:200:300"))), out.Digest)
}

func TestRPCRouter_DefaultSecret(t *testing.T) {
	t.Parallel()

	t.Run("configured", func(t *testing.T) {
		t.Parallel()

		config := newTestConfig()
		config.SignerPrivateKey = testSecret
		dialer := setupTestRPCRouter(t, config, nil).dial(t)

		out := signResponse(t, callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "100:200:300"}))
		assert.Equal(t, messageSignature, out.Signature)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		tr := setupTestRPCRouter(t, newTestConfig(), nil)
		dialer := tr.dial(t)

		res := callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "100:200:300"})
		require.EqualError(t, res.Error(), "invalid key: secret is required: no default signer is configured")

		assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.SignFailures.WithLabelValues("sign_message", "invalid_key")))
		assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.SignRequests.WithLabelValues("sign_message", "failure")))
	})
}

func TestRPCRouter_SignErrors(t *testing.T) {
	t.Parallel()

	tr := setupTestRPCRouter(t, newTestConfig(), nil)
	dialer := tr.dial(t)

	tcs := []struct {
		name    string
		params  rpc.SignRequest
		wantErr error
		kind    signing.Kind
	}{
		{
			name:    "invalid hex secret",
			params:  rpc.SignRequest{Document: json.RawMessage(mailDocument), Secret: "zz"},
			wantErr: signing.ErrInvalidHex,
			kind:    signing.KindInvalidHex,
		},
		{
			name:    "short secret",
			params:  rpc.SignRequest{Document: json.RawMessage(mailDocument), Secret: "0x0102"},
			wantErr: sign.ErrInvalidKey,
			kind:    signing.KindInvalidKey,
		},
		{
			name:    "document string is not json",
			params:  rpc.SignRequest{Document: json.RawMessage(`"not json"`), Secret: testSecret},
			wantErr: eip712.ErrMalformedDocument,
			kind:    signing.KindMalformedDocument,
		},
		{
			name:    "unknown type",
			params:  rpc.SignRequest{Document: json.RawMessage(`{"types":{"EIP712Domain":[]},"primaryType":"Mail","domain":{},"message":{}}`), Secret: testSecret},
			wantErr: eip712.ErrUnknownType,
			kind:    signing.KindUnknownType,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			res := callRPC(t, dialer, rpc.SignMethod, tc.params)
			assert.Equal(t, rpc.ErrorMethod.String(), res.Res.Method)
			require.Error(t, res.Error())
			assert.True(t, strings.HasPrefix(res.Error().Error(), tc.wantErr.Error()), res.Error().Error())
			assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.SignFailures.WithLabelValues("sign", string(tc.kind))))
		})
	}

	res := callRPC(t, dialer, rpc.SignMethod, map[string]string{"secret": testSecret})
	require.EqualError(t, res.Error(), "invalid parameters: Document failed required")

	assert.Equal(t, 5.0, testutil.ToFloat64(tr.metrics.SignRequests.WithLabelValues("sign", "failure")))
}

func TestRPCRouter_JournalDisabled(t *testing.T) {
	t.Parallel()

	dialer := setupTestRPCRouter(t, newTestConfig(), nil).dial(t)

	res := callRPC(t, dialer, rpc.GetSignaturesMethod, nil)
	require.EqualError(t, res.Error(), "journal is disabled")
}

func TestRPCRouter_GetSignatures(t *testing.T) {
	t.Parallel()

	journal := NewJournalStore(setupTestDB(t))
	dialer := setupTestRPCRouter(t, newTestConfig(), journal).dial(t)

	for i := 0; i < 2; i++ {
		signResponse(t, callRPC(t, dialer, rpc.SignMethod, rpc.SignRequest{Document: json.RawMessage(mailDocument), Secret: testSecret}))
	}
	signResponse(t, callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "100:200:300", Secret: testSecret}))
	// Failed calls are not journaled.
	require.Error(t, callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "x", Secret: "zz"}).Error())

	getSignatures := func(t *testing.T, params rpc.GetSignaturesRequest) rpc.GetSignaturesResponse {
		res := callRPC(t, dialer, rpc.GetSignaturesMethod, params)
		require.NoError(t, res.Error())
		var out rpc.GetSignaturesResponse
		require.NoError(t, res.Res.Params.Translate(&out))
		return out
	}

	t.Run("all", func(t *testing.T) {
		out := getSignatures(t, rpc.GetSignaturesRequest{})
		assert.EqualValues(t, 3, out.Total)
		require.Len(t, out.Signatures, 3)
		assert.Equal(t, "sign_message", out.Signatures[0].Method)
		assert.Equal(t, messageSignature, out.Signatures[0].Signature)
		assert.NotEmpty(t, out.Signatures[0].ConnectionID)
	})

	t.Run("filtered and paged", func(t *testing.T) {
		out := getSignatures(t, rpc.GetSignaturesRequest{Method: "sign", Limit: 1, Sort: "asc"})
		assert.EqualValues(t, 2, out.Total)
		require.Len(t, out.Signatures, 1)
		assert.Equal(t, mailSignature, out.Signatures[0].Signature)
	})

	t.Run("invalid params", func(t *testing.T) {
		res := callRPC(t, dialer, rpc.GetSignaturesMethod, map[string]string{"sort": "up"})
		require.EqualError(t, res.Error(), "invalid parameters: Sort failed oneof")

		res = callRPC(t, dialer, rpc.GetSignaturesMethod, map[string]any{"limit": MaxLimit + 1})
		require.EqualError(t, res.Error(), "invalid parameters: Limit failed max")
	})
}

func TestGetValidator_HexKey(t *testing.T) {
	t.Parallel()

	validate := getValidator()

	assert.NoError(t, validate.Struct(rpc.SignMessageRequest{Secret: "0X" + strings.ToUpper(testSecret)}))
	assert.NoError(t, validate.Struct(rpc.SignMessageRequest{}))
	assert.Error(t, validate.Struct(rpc.SignMessageRequest{Secret: "0xabc"}))
}

func TestRPCRouter_Tracing(t *testing.T) {
	t.Parallel()

	tr := setupTestRPCRouter(t, newTestConfig(), nil)
	tracer := &recordingTracer{}
	tr.router.tracer = tracer
	dialer := tr.dial(t)

	res := callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "100:200:300", Secret: testSecret})
	require.NoError(t, res.Error())

	res = callRPC(t, dialer, rpc.SignMessageMethod, rpc.SignMessageRequest{Message: "100:200:300", Secret: "0x01"})
	require.Error(t, res.Error())

	require.Eventually(t, func() bool {
		spans := tracer.Spans()
		return len(spans) == 2 && spans[0].Ended() && spans[1].Ended()
	}, time.Second, 10*time.Millisecond)

	spans := tracer.Spans()
	assert.Equal(t, rpc.SignMessageMethod.String(), spans[0].name)
	assert.Equal(t, codes.Unset, spans[0].Status())
	assert.Contains(t, spans[0].Events(), "handled RPC request")

	assert.Equal(t, codes.Error, spans[1].Status())
	assert.Contains(t, spans[1].Events(), "failed to handle RPC request")
}

// recordingTracer hands out spans that remember their events and status.
type recordingTracer struct {
	noop.Tracer

	mu    sync.Mutex
	spans []*recordedSpan
}

func (rt *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	span := &recordedSpan{
		name: name,
		sc: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x0a},
			SpanID:  trace.SpanID{byte(len(rt.spans) + 1)},
		}),
	}
	rt.spans = append(rt.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

func (rt *recordingTracer) Spans() []*recordedSpan {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]*recordedSpan(nil), rt.spans...)
}

type recordedSpan struct {
	noop.Span

	name string
	sc   trace.SpanContext

	mu     sync.Mutex
	events []string
	status codes.Code
	ended  bool
}

func (s *recordedSpan) SpanContext() trace.SpanContext { return s.sc }

func (s *recordedSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *recordedSpan) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordedSpan) Status() codes.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *recordedSpan) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
