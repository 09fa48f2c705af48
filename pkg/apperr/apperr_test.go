package apperr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUpstream_WrapsBothSentinelAndCause(t *testing.T) {
	t.Parallel()

	err := Upstream("usda", context.DeadlineExceeded)

	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected errors.Is(err, ErrUpstream), got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "usda") {
		t.Errorf("expected service name in message, got %q", err.Error())
	}
}

func TestInvalid_FormatsMessage(t *testing.T) {
	t.Parallel()

	err := Invalid("weight must be > 0, got %v", -1.5)

	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err.Error() != "invalid input: weight must be > 0, got -1.5" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSentinels_AreDistinct(t *testing.T) {
	t.Parallel()

	all := []error{ErrConfiguration, ErrUpstream, ErrDecomposition, ErrSchemaMismatch, ErrNotFound, ErrInvalidInput}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}
