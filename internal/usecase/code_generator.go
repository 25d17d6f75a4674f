package usecase

import (
	"crypto/rand"
	"io"

	"signup-code-service/internal/domain/model"
)

// generateSignupCode creates a secure, random, human-readable signup code.
// The character set avoids ambiguous characters like O/0, I/1, l, while
// staying plain alphanumeric so the format check accepts every generated
// value.
func generateSignupCode() (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	buffer := make([]byte, model.CodeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}

	for i := 0; i < model.CodeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}
	return string(buffer), nil
}
