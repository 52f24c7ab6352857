package utils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/domain"
)

type logCommand struct {
	InstanceID string `validate:"required_without=StepID"`
	StepID     string `validate:"required_without=InstanceID"`
	Type       string `validate:"required,log_type"`
	Message    string `validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(logCommand{InstanceID: "A1", Type: "info", Message: "ok"}))

	err := ValidateStruct(logCommand{Type: "DEBUG"})
	require.True(t, domain.IsValidation(err))
	require.Contains(t, err.Error(), "InstanceID is required when StepID is empty")
	require.Contains(t, err.Error(), `Type "DEBUG" is not a log type`)
	require.Contains(t, err.Error(), "Message is required")
}

func TestIsValidUUID(t *testing.T) {
	require.True(t, IsValidUUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	require.False(t, IsValidUUID("3f2504e0"))
	require.False(t, IsValidUUID(""))
}

func TestDecodeStrict(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeStrict([]byte(`{"name":"order"}`), &out))
	require.Equal(t, "order", out.Name)

	require.ErrorContains(t, DecodeStrict([]byte(`{"name":"order","extra":1}`), &out), "unknown field")
}
