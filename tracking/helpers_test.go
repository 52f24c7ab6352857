package tracking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustField(t *testing.T, raw []byte, field string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body))
	value, ok := body[field]
	require.True(t, ok, "field %s missing from %s", field, raw)
	return string(value)
}
