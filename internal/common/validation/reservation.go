// Package validation checks inbound payloads against JSON schemas.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// reservationSchema mirrors the public intake form contract.
var reservationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"full_name": map[string]interface{}{
			"type":      "string",
			"minLength": 3,
			"maxLength": 120,
		},
		"phone": map[string]interface{}{
			"type":      "string",
			"minLength": 6,
			"maxLength": 40,
		},
		"email": map[string]interface{}{
			"type":      "string",
			"format":    "email",
			"maxLength": 120,
		},
		"location": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"village", "downtown", "los-corales"},
		},
		"reservation_date": map[string]interface{}{
			"type":    "string",
			"pattern": `^\d{4}-\d{2}-\d{2}$`,
		},
		"reservation_time": map[string]interface{}{
			"type":    "string",
			"pattern": `^\d{2}:\d{2}$`,
		},
		"guests": map[string]interface{}{
			"type":    "integer",
			"minimum": 1,
			"maximum": 30,
		},
		"comments": map[string]interface{}{
			"type":      "string",
			"maxLength": 1000,
		},
		"source": map[string]interface{}{
			"type":      "string",
			"maxLength": 32,
		},
	},
	"required": []interface{}{
		"full_name", "phone", "email", "location",
		"reservation_date", "reservation_time", "guests",
	},
	"additionalProperties": false,
}

// ValidateReservationPayload validates a decoded intake payload. The returned
// error message lists every violated constraint.
func ValidateReservationPayload(payload map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(reservationSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid reservation payload: %s", strings.Join(errs, "; "))
	}

	return nil
}
