package materialize

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// SecretLength is the size of every generated secret
	SecretLength = 40

	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9]
func RandomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random value: %w", err)
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}
