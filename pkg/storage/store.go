package storage

import (
	"context"

	"github.com/llmarena/arena/pkg/api"
)

// ThreadStore persists threads and their per-side message logs.
//
// Implementations scope every operation to [GetOwner] when an owner is
// present in the context.
type ThreadStore interface {
	// GetThread returns ErrNotFound when the thread does not exist.
	GetThread(ctx context.Context, id string) (*api.Thread, error)

	// CreateOrAssign creates the thread or completes a thread that has no
	// model assignment yet. Fields that are already set are left untouched,
	// so repeated calls are safe. A thread owned by a different non-empty
	// owner is not modified.
	CreateOrAssign(ctx context.Context, id string, modelIDs []string, ownerID, category string, initial *api.InitialContext) error

	// AppendMessage appends to the log of the side the model answers on.
	// Returns ErrNotFound if the thread vanished and ErrModelNotAssigned if
	// the model is not part of the thread.
	AppendMessage(ctx context.Context, id, modelID string, msg api.Message) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// ModelStore holds the model directory records.
type ModelStore interface {
	ListModels(ctx context.Context) ([]api.ModelConfig, error)

	// UpsertModel inserts or replaces the record keyed by its model id.
	UpsertModel(ctx context.Context, cfg api.ModelConfig) error

	HealthCheck(ctx context.Context) error
}
