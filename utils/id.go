package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID identifies one tracker session in logs and in the view model.
func NewSessionID() string {
	return uuid.NewString()
}

// RandomHex returns n random bytes hex encoded, used for generated JWT secrets.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
