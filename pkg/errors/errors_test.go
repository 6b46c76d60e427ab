package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"syntax app error", Syntaxf("unbalanced bracket in %q", "[ab"), http.StatusBadRequest},
		{"too complex app error", TooComplexf("slot expands to %d candidates", 99999), http.StatusUnprocessableEntity},
		{"wrapped syntax sentinel", fmt.Errorf("compiling: %w", ErrInvalidSyntax), http.StatusBadRequest},
		{"store unavailable", fmt.Errorf("loading tokens: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := fmt.Errorf("querying tokens: %w", context.Canceled)
	if got := PublicMessage(err); got != "search failed" {
		t.Errorf("PublicMessage() = %q, want %q", got, "search failed")
	}
	if got := PublicMessage(Syntaxf("dangling %q", "$")); got != `dangling "$"` {
		t.Errorf("PublicMessage() = %q", got)
	}
}

func TestReason(t *testing.T) {
	if got := Reason(TooComplexf("x")); got != "too_complex" {
		t.Errorf("Reason() = %q, want too_complex", got)
	}
	if got := Reason(nil); got != "ok" {
		t.Errorf("Reason(nil) = %q, want ok", got)
	}
}
