package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet excludes visually ambiguous characters (I, O, 0, 1) so codes
// survive being read off a screen or spoken aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateJoinCode produces a random join code of the given length from the
// fixed alphabet.
func generateJoinCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("join code length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
