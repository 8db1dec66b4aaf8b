package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// TokensEqual compares two bearer tokens by digest in constant time.
func TokensEqual(a, b string) bool {
	ha, hb := HashToken(a), HashToken(b)
	return subtle.ConstantTimeCompare([]byte(ha), []byte(hb)) == 1
}
