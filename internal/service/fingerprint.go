package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes the canonical fingerprint of a request body: JSON
// serialization with stable key ordering ("null" for an absent body), UTF-8
// encoded, SHA-256 hashed, lowercase hex. Two bodies with the same
// fingerprint are deemed equivalent; collisions are accepted.
func Fingerprint(body interface{}) (string, error) {
	// encoding/json sorts map keys, so bodies decoded from JSON serialize
	// deterministically regardless of the order the client sent them in.
	canonical, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("serialize request body: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
