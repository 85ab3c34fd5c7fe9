package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["templateId"],
  "properties": {
    "templateId": {"type": "integer", "minimum": 1},
    "channel": {"type": "string", "enum": ["sms", "email", "both"]}
  },
  "additionalProperties": false
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name      string
		body      string
		valid     bool
		badField  string
		errorCode string
	}{
		{name: "valid", body: `{"templateId": 3, "channel": "sms"}`, valid: true},
		{name: "missing template", body: `{"channel": "sms"}`, badField: "templateId", errorCode: "required"},
		{name: "zero template", body: `{"templateId": 0}`, badField: "templateId", errorCode: "number_gte"},
		{name: "bad channel", body: `{"templateId": 1, "channel": "fax"}`, badField: "channel", errorCode: "enum"},
		{name: "unknown field", body: `{"templateId": 1, "extra": true}`, badField: "(root)", errorCode: "additional_property_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ValidateJSON([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.True(t, result.HasErrors(tt.badField), result.Summary())
				assert.Equal(t, tt.errorCode, result.Errors[0].Code)
			}
		})
	}
}

func TestSchema_MalformedJSON(t *testing.T) {
	s := MustCompile(testSchema)
	_, err := s.ValidateJSON([]byte(`{"templateId":`))
	assert.Error(t, err)
}

func TestSchema_ValidateInput(t *testing.T) {
	s := MustCompile(testSchema)

	result, err := s.ValidateInput(map[string]interface{}{"templateId": 2})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = s.ValidateInput(map[string]interface{}{"templateId": "two"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Summary(), "templateId")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": "nonsense"}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}
