package errors

import "strings"

// FieldViolation names a single invalid field and why it is invalid.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every violated field of an entity. An entity is
// either accepted whole or rejected with the full list of problems; it is
// never partially accepted.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation for the given field.
func (e *ValidationError) Add(field, reason string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Reason: reason})
}

// Fields returns the names of all violated fields.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fields
}

// OrNil returns the error itself when violations were recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
