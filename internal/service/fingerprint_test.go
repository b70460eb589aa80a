package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	body := map[string]interface{}{"amount": float64(100), "currency": "USD"}

	h1, err := Fingerprint(body)
	require.NoError(t, err)
	h2, err := Fingerprint(body)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", h1)
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	// Same JSON object sent with different key order must fingerprint equal.
	var a, b interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":100,"currency":"USD"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"currency":"USD","amount":100}`), &b))

	ha, err := Fingerprint(a)
	require.NoError(t, err)
	hb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestFingerprint_DifferentBodiesDiffer(t *testing.T) {
	ha, err := Fingerprint(map[string]interface{}{"amount": float64(100)})
	require.NoError(t, err)
	hb, err := Fingerprint(map[string]interface{}{"amount": float64(101)})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestFingerprint_NilBody(t *testing.T) {
	// An absent body serializes as "null" and still gets a stable hash.
	h, err := Fingerprint(nil)
	require.NoError(t, err)
	assert.Equal(t, "74234e98afe7498fb5daf1f36ac2d78acc339464f950703b8c019892f982b90b", h)
}

func TestFingerprint_UnserializableBody(t *testing.T) {
	_, err := Fingerprint(func() {})
	require.Error(t, err)
}
