package kernelsy

import (
	"bytes"
	"encoding/json"

	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaResource is the in-memory location every function schema is compiled under.
const schemaResource = "https://kernelsy.local/function.json"

// Validatable is implemented by argument structs that need custom business validation.
// Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// schemaValidator validates a JSON value decoded with validator.UnmarshalJSON.
// *validator.Schema implements it.
type schemaValidator interface {
	Validate(v any) error
}

// compileRawSchema compiles a raw JSON Schema map into a validator. The map is not mutated.
func compileRawSchema(schemaMap map[string]any) (*validator.Schema, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	doc, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := validator.NewCompiler()
	if err := c.AddResource(schemaResource, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaResource)
}

// decodeArgs parses raw argument JSON into the representation the validator expects.
// Empty input is treated as an empty object.
func decodeArgs(argsJSON []byte) (any, error) {
	if len(bytes.TrimSpace(argsJSON)) == 0 {
		argsJSON = []byte("{}")
	}
	v, err := validator.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return nil, wrapJSONParseError(err)
	}
	return v, nil
}

// validateAgainstSchema runs Layer 1 validation on an already-parsed value v.
func validateAgainstSchema(validate schemaValidator, v any) error {
	if err := validate.Validate(v); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// normalizeArgs returns argsJSON, or "{}" when it is blank.
func normalizeArgs(argsJSON []byte) []byte {
	if len(bytes.TrimSpace(argsJSON)) == 0 {
		return []byte("{}")
	}
	return argsJSON
}
