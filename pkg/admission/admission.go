// Package admission validates inbound decision payloads before they reach
// the validation pipeline. Malformed or structurally invalid submissions are
// rejected at the boundary so downstream checks can trust their input.
package admission

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/relayline/governor/pkg/contracts"
)

const schemaURL = "https://governor.schemas.local/decision.schema.json"

// decisionSchema constrains the wire form of a decision submission.
const decisionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "type", "description"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {
      "type": "string",
      "enum": [
        "CONTENT_CREATION",
        "FINANCIAL_TRANSACTION",
        "PLATFORM_INTERACTION",
        "LEARNING_ADAPTATION",
        "SERVICE_OFFERING",
        "GOVERNANCE_PARTICIPATION",
        "EMERGENCY_ACTION"
      ]
    },
    "description": {"type": "string", "minLength": 1, "maxLength": 10000},
    "risk_level": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL"]},
    "estimated_cost": {"type": "integer", "minimum": 0},
    "estimated_revenue": {"type": "integer", "minimum": 0},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "context": {
      "type": "object",
      "properties": {
        "platform": {"type": "string"},
        "target": {"type": "string"},
        "amount": {"type": "integer", "minimum": 0},
        "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
        "urgency": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
        "potential_impact": {"type": "string", "enum": ["minimal", "moderate", "significant", "major"]},
        "reversible": {"type": "boolean"},
        "precedent_exists": {"type": "boolean"}
      }
    }
  }
}`

// Validator admits decision submissions that conform to the wire schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the decision schema. Compilation failure is a
// programming error and is returned rather than panicking.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(decisionSchema)); err != nil {
		return nil, fmt.Errorf("admission schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("admission schema compile failed: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Admit parses and validates raw JSON, returning the decoded decision.
func (v *Validator) Admit(raw []byte) (*contracts.Decision, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("admission rejected submission: invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("admission rejected submission: %w", err)
	}

	var d contracts.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("admission rejected submission: %w", err)
	}
	return &d, nil
}
