package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKeyError(t *testing.T) {
	err := NewKeyError("db/password", ErrValueTooLarge)

	if err.Error() != "cache: value too large: db/password" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
	if !IsValueTooLarge(err) {
		t.Error("Expected KeyError to unwrap to ErrValueTooLarge")
	}
	if IsAdmissionDenied(err) {
		t.Error("Did not expect ErrAdmissionDenied")
	}

	var ke *KeyError
	wrapped := fmt.Errorf("set failed: %w", err)
	if !errors.As(wrapped, &ke) || ke.Key != "db/password" {
		t.Errorf("Expected errors.As to find the KeyError, got %v", ke)
	}
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Value: "scorer exploded"}
	if !IsEvictionFailure(err) {
		t.Error("Expected PanicError to be an eviction failure")
	}
	if err.Error() != "recovered panic: scorer exploded" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestHelpers(t *testing.T) {
	if !IsClosed(NewKeyError("k", ErrClosed)) {
		t.Error("Expected IsClosed to match")
	}
	if !IsAdmissionDenied(fmt.Errorf("wrap: %w", ErrAdmissionDenied)) {
		t.Error("Expected IsAdmissionDenied to match wrapped error")
	}
	if IsEvictionFailure(nil) {
		t.Error("nil is not an eviction failure")
	}
}
