// Package validation checks inbound payload shapes before they reach the core.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// dispatchSchema describes the wire shape of a notification dispatch request
// as submitted by the API layer.
var dispatchSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"target": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"kind": map[string]interface{}{
					"type": "string",
					"enum": []string{"all", "explicit", "scoped"},
				},
				"memberIds": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"level": map[string]interface{}{
					"type": "string",
					"enum": []string{"state", "zone", "district", "chapter"},
				},
				"orgUnitIds": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
			"required": []string{"kind"},
		},
		"subject": map[string]interface{}{"type": "string", "minLength": 1},
		"content": map[string]interface{}{"type": "string", "minLength": 1},
		"media":   map[string]interface{}{"type": "string"},
		"channel": map[string]interface{}{
			"type": "string",
			"enum": []string{"email", "in-app"},
		},
	},
	"required": []string{"target", "subject", "content", "channel"},
}

// ValidateDispatchPayload validates a decoded dispatch request body. The
// returned error message concatenates every schema violation.
func ValidateDispatchPayload(payload map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(dispatchSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid dispatch payload: %s", strings.Join(msgs, "; "))
}
