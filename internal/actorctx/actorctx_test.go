package actorctx

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	if _, ok := From(context.Background()); ok {
		t.Fatal("empty context must not carry an actor")
	}

	want := Actor{RequestID: "r-1", ClientIP: "192.0.2.1"}
	ctx := With(context.Background(), want)

	got, ok := From(ctx)
	if !ok {
		t.Fatal("actor not found")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("actor mismatch (-want +got):\n%s", diff)
	}
}
