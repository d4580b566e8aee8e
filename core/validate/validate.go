/*
Package validate checks parsed request fields against a field specification.

The specification is compiled into a JSON schema and evaluated with
gojsonschema, which reports every violation in a single pass. Callers see all
of their input mistakes in one round trip instead of retrying field by field.
*/
package validate

import (
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowlabs-tech/labflow/core"
)

// Kind is the expected kind of a field value.
type Kind int

// all field kinds
const (
	Text Kind = iota
	NonEmptyText
	Integer
)

// Field names one input field with its required flag and expected kind.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Values is a validated field set. Integer fields supplied as strings have
// been coerced.
type Values map[string]interface{}

// String returns the named field as a string.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Int returns the named field as an int. JSON numbers arrive as float64,
// coerced form and query values as int.
func (v Values) Int(name string) int {
	switch n := v[name].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// Has reports whether the field is present.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Validate checks the parsed fields against the specification and returns the
// typed values, or a validation error naming every missing or invalid field.
func Validate(fields map[string]interface{}, spec []Field) (Values, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}

	values := Values{}
	for key, value := range fields {
		values[key] = value
	}

	// integers are accepted as decimal strings, e.g. from form or query input
	for _, field := range spec {
		if field.Kind != Integer {
			continue
		}
		if s, ok := values[field.Name].(string); ok {
			if n, err := strconv.Atoi(s); err == nil {
				values[field.Name] = n
			}
		}
	}

	schema := gojsonschema.NewGoLoader(schemaFor(spec))
	document := gojsonschema.NewGoLoader(map[string]interface{}(values))
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return nil, core.InternalError(err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			violations = append(violations, violationString(resultError))
		}
		return nil, core.ValidationError("missing or invalid fields", violations)
	}
	return values, nil
}

func schemaFor(spec []Field) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, field := range spec {
		switch field.Kind {
		case NonEmptyText:
			properties[field.Name] = map[string]interface{}{"type": "string", "minLength": 1}
		case Integer:
			properties[field.Name] = map[string]interface{}{"type": "integer"}
		default:
			properties[field.Name] = map[string]interface{}{"type": "string"}
		}
		if field.Required {
			required = append(required, field.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func violationString(resultError gojsonschema.ResultError) string {
	field := resultError.Field()
	if property, ok := resultError.Details()["property"].(string); ok && field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		field = property
	}
	return fmt.Sprintf("%s: %s", field, resultError.Description())
}
