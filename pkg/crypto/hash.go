package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// SecretsEqual compares two secrets in constant time. Both sides are hashed first so that
// differing lengths do not leak through timing.
func SecretsEqual(provided, expected string) bool {
	a := sha256.Sum256([]byte(provided))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
