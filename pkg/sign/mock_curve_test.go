package sign

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCurve(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte{0x01}, 32)
	digest := bytes.Repeat([]byte{0x02}, 32)

	mock := NewMockCurve(RawSignature{R: []byte{0x01}, S: []byte{0x02}, RecoveryID: 1})
	signer, err := NewSigner(mock, secret)
	require.NoError(t, err)

	sig, err := signer.Sign(digest)
	require.NoError(t, err)
	assert.Equal(t, byte(28), sig.V())
	require.Len(t, mock.Digests, 1)
	assert.Equal(t, digest, mock.Digests[0])

	mock.Raw.RecoveryID = 4
	_, err = signer.Sign(digest)
	require.ErrorIs(t, err, ErrInternal)

	mock.Err = errors.New("boom")
	_, err = signer.Sign(digest)
	require.EqualError(t, err, "boom")
}
