package storage

import (
	"context"
	"testing"
)

func TestSetGetOwner(t *testing.T) {
	ctx := context.Background()

	// No owner set: empty string.
	if got := GetOwner(ctx); got != "" {
		t.Errorf("GetOwner(empty ctx) = %q, want %q", got, "")
	}

	ctx = SetOwner(ctx, "user-abc")
	if got := GetOwner(ctx); got != "user-abc" {
		t.Errorf("GetOwner = %q, want %q", got, "user-abc")
	}

	// Override owner.
	ctx = SetOwner(ctx, "user-xyz")
	if got := GetOwner(ctx); got != "user-xyz" {
		t.Errorf("GetOwner = %q, want %q", got, "user-xyz")
	}
}

func TestGetOwner_NoCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "owner", "wrong")
	if got := GetOwner(ctx); got != "" {
		t.Errorf("GetOwner should not match string key, got %q", got)
	}
}
