package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ChatRequestSchema is the JSON Schema the POST /chat body is validated
// against before any field is interpreted.
const ChatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["sessionId"],
  "properties": {
    "sessionId": {
      "type": "string",
      "minLength": 1,
      "description": "Opaque client-supplied conversation identifier"
    },
    "message": {
      "type": "string",
      "description": "User message for this turn"
    },
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {
            "type": "string",
            "enum": ["system", "user", "assistant"]
          },
          "content": {
            "type": "string"
          }
        }
      }
    },
    "endSession": {
      "type": "boolean"
    }
  }
}`

// chatSchema is compiled once at server construction.
func compileChatSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ChatRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat request schema: %w", err)
	}
	return schema, nil
}

// validateChatBody validates a raw JSON body against the schema and returns
// a single readable message listing the violations.
func validateChatBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}
