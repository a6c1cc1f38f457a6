package persist

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeInvalidStoreURL, "bad location")
	if !errors.Is(err, New(CodeInvalidStoreURL, "other message")) {
		t.Fatal("expected code match")
	}
	if errors.Is(err, New(CodeFileRemoval, "bad location")) {
		t.Fatal("expected code mismatch")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("disk on fire")
	err := Wrap(CodeCoordinatorFailure, "attach store", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to match")
	}
	if got := err.Error(); got != "attach store: disk on fire" {
		t.Fatalf("message = %q", got)
	}
}

func TestCodeOfWalksWrappedChains(t *testing.T) {
	t.Parallel()

	inner := New(CodeFileRemoval, "cannot delete")
	outer := fmt.Errorf("reset: %w", inner)
	if got := CodeOf(outer); got != CodeFileRemoval {
		t.Fatalf("code = %q, want %q", got, CodeFileRemoval)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}
