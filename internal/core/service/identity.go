package service

import (
	"crypto/rand"
	"fmt"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	tokenLength   = 20
	idDigits      = 12
)

// generatePrivateID returns 12 random decimal digits as DDD-DDD-DDD-DDD.
// Each byte is reduced modulo 10, which slightly favours 0-5; the id is a
// lookup key, not a secret. Uniqueness is the caller's job.
func generatePrivateID() (string, error) {
	b := make([]byte, idDigits)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate private id: %w", err)
	}
	d := make([]byte, idDigits)
	for i, v := range b {
		d[i] = '0' + v%10
	}
	return fmt.Sprintf("%s-%s-%s-%s", d[0:3], d[3:6], d[6:9], d[9:12]), nil
}

// generateToken returns 20 characters drawn uniformly from tokenAlphabet.
// The alphabet has 64 symbols so masking a byte with 63 carries no bias.
func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	for i, v := range b {
		b[i] = tokenAlphabet[v&63]
	}
	return string(b), nil
}
