package sign

var (
	_ Signer    = (*MockSigner)(nil)
	_ PublicKey = (*MockPublicKey)(nil)
	_ Address   = (*MockAddress)(nil)
)

// MockSigner is a Signer for transport tests. Its signature of data is data
// itself with "-signed-by-<id>" appended.
type MockSigner struct {
	pub *MockPublicKey
}

// NewMockSigner returns a MockSigner whose address is id.
func NewMockSigner(id string) *MockSigner {
	return &MockSigner{pub: NewMockPublicKey(id)}
}

func (m *MockSigner) PublicKey() PublicKey { return m.pub }

func (m *MockSigner) Sign(data []byte) (Signature, error) {
	suffix := "-signed-by-" + m.pub.id
	sig := make(Signature, 0, len(data)+len(suffix))
	sig = append(sig, data...)
	return append(sig, suffix...), nil
}

// MockPublicKey is the public key of a MockSigner.
type MockPublicKey struct{ id string }

func NewMockPublicKey(id string) *MockPublicKey { return &MockPublicKey{id: id} }

func (k *MockPublicKey) Address() Address { return NewMockAddress(k.id) }
func (k *MockPublicKey) Bytes() []byte    { return []byte(k.id) }

// MockAddress compares by its string form.
type MockAddress struct{ id string }

func NewMockAddress(id string) *MockAddress { return &MockAddress{id: id} }

func (a *MockAddress) String() string            { return a.id }
func (a *MockAddress) Equals(other Address) bool { return other != nil && other.String() == a.id }
