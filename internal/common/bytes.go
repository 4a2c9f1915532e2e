package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// It panics if the generator fails, which only happens on a broken host.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of b with zeros. Use it on
// passwords and derived keys once they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
