package evalerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsQueryFindsWrappedQueryError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("evaluate rule: %w", Query("A", cause))

	queryErr, ok := AsQuery(err)
	if !ok {
		t.Fatalf("expected query error in chain")
	}
	if queryErr.RefID != "A" {
		t.Fatalf("unexpected ref id %q", queryErr.RefID)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected chain to keep root cause")
	}
	if Classify(err) != KindQuery {
		t.Fatalf("expected query kind, got %s", Classify(err))
	}
}

func TestAsQueryAcceptsPointerVariant(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &QueryError{RefID: "B", Err: errors.New("boom")})
	queryErr, ok := AsQuery(err)
	if !ok || queryErr.RefID != "B" {
		t.Fatalf("unexpected extraction: %+v %v", queryErr, ok)
	}
}

func TestClassifyOpaqueAndNil(t *testing.T) {
	t.Parallel()

	if Classify(nil) != KindNone {
		t.Fatalf("expected none kind for nil")
	}
	if Classify(errors.New("plain")) != KindOpaque {
		t.Fatalf("expected opaque kind")
	}
	if _, ok := AsQuery(errors.New("plain")); ok {
		t.Fatalf("plain error must not be a query error")
	}
	if Query("A", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestDecodeEncode(t *testing.T) {
	t.Parallel()

	if Decode("  ", "A") != nil {
		t.Fatalf("expected nil error for empty message")
	}
	err := Decode("timeout", "A")
	message, refID := Encode(err)
	if message != "timeout" || refID != "A" {
		t.Fatalf("unexpected encode result %q %q", message, refID)
	}
	if err.Error() != "failed to execute query A: timeout" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	message, refID = Encode(Decode("disk full", ""))
	if message != "disk full" || refID != "" {
		t.Fatalf("unexpected opaque encode result %q %q", message, refID)
	}
}
