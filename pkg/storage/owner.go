package storage

import "context"

// ownerKey is a private type for the owner context key, preventing
// collisions with other packages.
type ownerKey struct{}

// SetOwner injects the authenticated owner of the request into the context.
// Stores scope thread reads and writes to this owner.
func SetOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// GetOwner extracts the owner identifier from the context.
// Returns an empty string if no owner is set (unscoped access).
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}
