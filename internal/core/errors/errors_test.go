package errors

import (
	"errors"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "branch not found")
		if err.Error() != "[NOT_FOUND] branch not found" {
			t.Errorf("expected [NOT_FOUND] branch not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("connection reset")
		err := Wrap(original, CodeUpstream, "tree listing failed")
		expected := "[UPSTREAM_ERROR] tree listing failed: connection reset"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid coordinates")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		if !IsCode(err, CodeInternal) {
			t.Error("expected IsCode to return true for wrapped CodeInternal")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := New(CodeNotFound, "missing")
		err = AddContext(err, CtxRepo, "octo/site")
		if !IsCode(err, CodeNotFound) {
			t.Error("AddContext must preserve the original code")
		}
	})
}
