package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("no rows")
	e := New(400, "Roster is empty", cause)
	if got := e.Error(); got != "Roster is empty: no rows" {
		t.Fatalf("Error: want=%q got=%q", "Roster is empty: no rows", got)
	}
	if !errors.Is(e, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
	if got := (&Error{Status: 502}).Error(); got != "api error (502)" {
		t.Fatalf("status-only Error: got=%q", got)
	}
}

func TestAsWalksChain(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", New(404, "File not found", nil))
	ae, ok := As(wrapped)
	if !ok || ae.Status != 404 {
		t.Fatalf("As: ok=%v ae=%+v", ok, ae)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("As: plain error should not match")
	}
}
