package api

import "shift-notify/internal/common/validation"

var (
	publishSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["templateId"],
  "properties": {
    "templateId": {"type": "integer", "minimum": 1},
    "channel": {"type": "string", "enum": ["sms", "email", "both"]}
  },
  "additionalProperties": false
}`)

	weekSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["weekCode", "templateId"],
  "properties": {
    "weekCode": {"type": "string", "minLength": 1},
    "templateId": {"type": "integer", "minimum": 1},
    "channel": {"type": "string", "enum": ["sms", "email", "both"]}
  },
  "additionalProperties": false
}`)

	recipientsSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["recipientIds", "templateId"],
  "properties": {
    "recipientIds": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "integer", "minimum": 1}
    },
    "weekCode": {"type": "string"},
    "templateId": {"type": "integer", "minimum": 1},
    "channel": {"type": "string", "enum": ["sms", "email", "both"]}
  },
  "additionalProperties": false
}`)
)
