package sign

var _ Curve = (*MockCurve)(nil)

// MockCurve is a Curve for tests. It returns a fixed raw signature or error
// and records the digests it was asked to sign.
type MockCurve struct {
	Raw     RawSignature
	Err     error
	Digests [][]byte
}

// NewMockCurve returns a MockCurve answering with raw.
func NewMockCurve(raw RawSignature) *MockCurve {
	return &MockCurve{Raw: raw}
}

// SignDigest records digest and returns the configured result.
func (m *MockCurve) SignDigest(digest, secret []byte) (RawSignature, error) {
	m.Digests = append(m.Digests, append([]byte(nil), digest...))
	if m.Err != nil {
		return RawSignature{}, m.Err
	}
	return m.Raw, nil
}
