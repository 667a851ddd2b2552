package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesOnKindOnly(t *testing.T) {
	wrapped := Wrap(KindCASMismatch, "write lost the race", fmt.Errorf("underlying"))
	if !errors.Is(wrapped, ErrCASMismatch) {
		t.Error("expected errors.Is to match on Kind regardless of message/cause")
	}
	if errors.Is(wrapped, ErrLocked) {
		t.Error("expected errors.Is to reject a different Kind")
	}
}

func TestUnwrap_ExposesWrappedError(t *testing.T) {
	cause := fmt.Errorf("socket reset")
	err := Wrap(KindSocketError, "reserve failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the wrapped cause via Unwrap")
	}
}

func TestKindOf_ExtractsThroughWrapping(t *testing.T) {
	inner := New(KindNotFound, "no such record")
	outer := fmt.Errorf("reading job: %w", inner)

	kind, ok := KindOf(outer)
	if !ok || kind != KindNotFound {
		t.Errorf("expected KindOf to find KindNotFound through fmt.Errorf wrapping, got %v/%v", kind, ok)
	}

	if _, ok := KindOf(fmt.Errorf("plain error")); ok {
		t.Error("expected KindOf to report false for a non-ZeroGError chain")
	}
}
