package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeStrict unmarshals data into target and rejects unknown fields
func DecodeStrict(data []byte, target interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
