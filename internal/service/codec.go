package service

import (
	"encoding/json"
	"fmt"
)

// EncodeResponse serializes a (status, body) pair into its stored form. The
// returned bytes are what the record store persists and what replays write
// back verbatim.
func EncodeResponse(status int, body interface{}) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("serialize response body: %w", err)
	}
	return status, data, nil
}

// DecodeResponse deserializes a stored response body. The mediator itself
// never needs this (replays are byte passthrough); it exists for callers
// that want to inspect a stored body.
func DecodeResponse(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var body interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("deserialize response body: %w", err)
	}
	return body, nil
}
