package eip712_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1ome/ex-eip712/pkg/eip712"
)

func TestParseTypedData(t *testing.T) {
	t.Parallel()

	td := mustParse(t, nftDocument)
	assert.Equal(t, "Nft", td.PrimaryType)
	assert.Len(t, td.Types, 2)
	assert.Equal(t, eip712.Field{Name: "receivers", Type: "address[]"}, td.Types["Nft"][2])

	price, ok := td.Message.Field("price")
	require.True(t, ok)
	s, ok := price.Str()
	require.True(t, ok)
	assert.Equal(t, "0x6F05B59D3B20000", s)

	receivers, ok := td.Message.Field("receivers")
	require.True(t, ok)
	items, ok := receivers.Items()
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestParseTypedData_Malformed(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name  string
		input string
	}{
		{"not json", `not json`},
		{"trailing garbage", `{"types":{},"primaryType":"A","domain":{},"message":{}} x`},
		{"array document", `[]`},
		{"missing types", `{"primaryType":"A","domain":{},"message":{}}`},
		{"types not an object", `{"types":"A","primaryType":"A","domain":{},"message":{}}`},
		{"missing primaryType", `{"types":{"A":[]},"domain":{},"message":{}}`},
		{"primaryType not a string", `{"types":{"A":[]},"primaryType":1,"domain":{},"message":{}}`},
		{"missing domain", `{"types":{"A":[]},"primaryType":"A","message":{}}`},
		{"null domain", `{"types":{"A":[]},"primaryType":"A","domain":null,"message":{}}`},
		{"missing message", `{"types":{"A":[]},"primaryType":"A","domain":{}}`},
		{"message not an object", `{"types":{"A":[]},"primaryType":"A","domain":{},"message":[]}`},
		{"field without type", `{"types":{"A":[{"name":"x"}]},"primaryType":"A","domain":{},"message":{}}`},
		{"field without name", `{"types":{"A":[{"type":"uint8"}]},"primaryType":"A","domain":{},"message":{}}`},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := eip712.ParseTypedData([]byte(tc.input))
			require.ErrorIs(t, err, eip712.ErrMalformedDocument)
		})
	}
}

func TestTypedData_Hash_ReferenceExample(t *testing.T) {
	t.Parallel()

	td := mustParse(t, mailDocumentChain1)

	domainSeparator, err := td.DomainSeparator()
	require.NoError(t, err)
	assert.Equal(t, "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f", hexutil.Encode(domainSeparator))

	messageHash, err := td.MessageHash()
	require.NoError(t, err)
	assert.Equal(t, "0xc52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e", hexutil.Encode(messageHash))

	digest, err := td.Hash()
	require.NoError(t, err)
	assert.Equal(t, "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2", hexutil.Encode(digest))
}

// TestTypedData_Hash_MatchesGoEthereum checks the digests against the
// go-ethereum apitypes implementation.
func TestTypedData_Hash_MatchesGoEthereum(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]string{
		"mail": mailDocument,
		"nft":  nftDocument,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var reference apitypes.TypedData
			require.NoError(t, json.Unmarshal([]byte(doc), &reference))
			expected, _, err := apitypes.TypedDataAndHash(reference)
			require.NoError(t, err)

			got, err := mustParse(t, doc).Hash()
			require.NoError(t, err)
			assert.Equal(t, hexutil.Encode(expected), hexutil.Encode(got))
		})
	}
}

func TestTypedData_Hash_TypesOrderIndependent(t *testing.T) {
	t.Parallel()

	reordered := `{"primaryType":"Mail","message":{"contents":"Hello, Bob!","to":{"wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB","name":"Bob"},"from":{"wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826","name":"Cow"}},"types":{"Mail":[{"name":"from","type":"Person"},{"name":"to","type":"Person"},{"name":"contents","type":"string"}],"Person":[{"name":"name","type":"string"},{"name":"wallet","type":"address"}],"EIP712Domain":[{"name":"name","type":"string"},{"name":"version","type":"string"},{"name":"chainId","type":"uint256"},{"name":"verifyingContract","type":"address"}]},"domain":{"verifyingContract":"0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC","chainId":"0x4","version":"1","name":"Ether Mail"}}`

	expected, err := mustParse(t, mailDocument).Hash()
	require.NoError(t, err)
	got, err := mustParse(t, reordered).Hash()
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestTypedData_Hash_FieldOrderSensitive(t *testing.T) {
	t.Parallel()

	swapped := `{"types":{"EIP712Domain":[{"name":"name","type":"string"},{"name":"version","type":"string"},{"name":"chainId","type":"uint256"},{"name":"verifyingContract","type":"address"}],"Person":[{"name":"wallet","type":"address"},{"name":"name","type":"string"}],"Mail":[{"name":"from","type":"Person"},{"name":"to","type":"Person"},{"name":"contents","type":"string"}]},"primaryType":"Mail","domain":{"name":"Ether Mail","version":"1","chainId":"0x4","verifyingContract":"0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"},"message":{"from":{"name":"Cow","wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},"to":{"name":"Bob","wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},"contents":"Hello, Bob!"}}`

	original, err := mustParse(t, mailDocument).Hash()
	require.NoError(t, err)
	got, err := mustParse(t, swapped).Hash()
	require.NoError(t, err)
	assert.NotEqual(t, original, got)
}

func TestTypedData_Hash_InferredDomain(t *testing.T) {
	t.Parallel()

	withoutDomainType := `{"types":{"Person":[{"name":"name","type":"string"},{"name":"wallet","type":"address"}],"Mail":[{"name":"from","type":"Person"},{"name":"to","type":"Person"},{"name":"contents","type":"string"}]},"primaryType":"Mail","domain":{"name":"Ether Mail","version":"1","chainId":"0x4","verifyingContract":"0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"},"message":{"from":{"name":"Cow","wallet":"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},"to":{"name":"Bob","wallet":"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},"contents":"Hello, Bob!"}}`

	expected, err := mustParse(t, mailDocument).Hash()
	require.NoError(t, err)
	got, err := mustParse(t, withoutDomainType).Hash()
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestTypedData_Hash_Errors(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name   string
		doc    string
		target error
	}{
		{
			name:   "undeclared primary type",
			doc:    `{"types":{"EIP712Domain":[]},"primaryType":"Mail","domain":{},"message":{}}`,
			target: eip712.ErrUnknownType,
		},
		{
			name:   "cyclic primary type",
			doc:    `{"types":{"EIP712Domain":[],"Node":[{"name":"next","type":"Node"}]},"primaryType":"Node","domain":{},"message":{"next":{}}}`,
			target: eip712.ErrCyclicType,
		},
		{
			name:   "missing message field",
			doc:    `{"types":{"EIP712Domain":[],"A":[{"name":"x","type":"uint8"}]},"primaryType":"A","domain":{},"message":{}}`,
			target: eip712.ErrMissingField,
		},
		{
			name:   "bad domain value",
			doc:    `{"types":{"EIP712Domain":[{"name":"chainId","type":"uint256"}],"A":[]},"primaryType":"A","domain":{"chainId":"one"},"message":{}}`,
			target: eip712.ErrTypeMismatch,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := mustParse(t, tc.doc).Hash()
			require.ErrorIs(t, err, tc.target)
		})
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `{"a":[1,"x",true,null],"b":{"c":12345678901234567890123}}`
	v := mustValue(t, raw)
	assert.Equal(t, eip712.KindObject, v.Kind())
	assert.Equal(t, []string{"a", "b"}, v.Keys())

	b, _ := v.Field("b")
	c, _ := b.Field("c")
	n, ok := c.Number()
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890123", n.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
