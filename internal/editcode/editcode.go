// Package editcode generates and normalizes the short codes that authorize
// editing or deleting an essay.
package editcode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	Length   = 6
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	ErrEmpty         = errors.New("edit code is required")
	ErrInvalidLength = errors.New("edit code must be 6 characters")
	ErrInvalidChars  = errors.New("edit code may only contain letters and digits")
)

// Generate returns a new random code of Length upper-case letters and digits.
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks an already normalized code.
func Validate(code string) error {
	if code == "" {
		return ErrEmpty
	}
	if len(code) != Length {
		return ErrInvalidLength
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return ErrInvalidChars
		}
	}
	return nil
}
