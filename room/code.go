package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 5
	// no 0/O, 1/I/L
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// GenerateCode returns a random room code.
func GenerateCode() (string, error) {
	out := make([]byte, CodeLength)
	for i := range out {
		x, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[x.Int64()]
	}
	return string(out), nil
}

// NormalizeCode makes user-typed codes comparable.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
