package capability

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
)

// stdCrypto is the default Crypto capability, backed by the standard
// library. Platform SDKs may substitute a Secure Enclave/Keystore
// backed implementation without changing any calling code.
type stdCrypto struct{}

// NewStdCrypto returns the standard-library-backed Crypto capability.
func NewStdCrypto() Crypto { return stdCrypto{} }

func (stdCrypto) HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (stdCrypto) SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (stdCrypto) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
