package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const defaultTokenBytes = 32

// RandomTokenGenerator issues URL-safe session tokens from crypto/rand.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size <= 0 {
		size = defaultTokenBytes
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: entropy read failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
