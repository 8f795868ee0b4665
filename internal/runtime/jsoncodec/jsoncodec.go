// Package jsoncodec is the JSON codec of every wire body: event and RPC
// envelopes, replies and stored documents.
package jsoncodec

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// std keeps encoding/json compatible output (sorted map keys, HTML escaping)
// so bodies stay byte-stable across services.
var std = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return std.Unmarshal(data, v)
}

var null = []byte("null")

// IsNull reports whether data is empty or the JSON literal null. RPC replies
// use null to signal "found nothing".
func IsNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, null)
}

// UnmarshalOptional decodes data into v unless it is null. found is false
// for null or empty input, and v is left untouched.
func UnmarshalOptional(data []byte, v any) (found bool, err error) {
	if IsNull(data) {
		return false, nil
	}
	if err := std.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
