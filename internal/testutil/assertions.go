package testutil

import (
	"errors"
	"testing"

	apperrors "moneta/internal/errors"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertValidationFields checks that err is a *ValidationError naming exactly
// the expected fields, in order.
func AssertValidationFields(t *testing.T, err error, expected ...string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected ValidationError for fields %v, got nil", expected)
	}

	var valErr *apperrors.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}

	fields := valErr.Fields()
	if len(fields) != len(expected) {
		t.Fatalf("expected %d violations %v, got %v", len(expected), expected, fields)
	}
	for i, field := range expected {
		if fields[i] != field {
			t.Errorf("expected violation %d to be %q, got %q", i, field, fields[i])
		}
	}
}
