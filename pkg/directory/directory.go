// Package directory provides the model directory: the set of configured
// backends and the random pairing used when a thread is first assigned.
package directory

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/storage"
)

// Directory reads model records from a ModelStore.
type Directory struct {
	store   storage.ModelStore
	shuffle func(n int, swap func(i, j int))
}

// Option configures a Directory.
type Option func(*Directory)

// WithShuffle replaces the permutation source. Tests use it to make the
// selection deterministic.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(d *Directory) { d.shuffle = fn }
}

// New creates a Directory backed by store.
func New(store storage.ModelStore, opts ...Option) *Directory {
	d := &Directory{store: store, shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListEnabled returns every model whose enabled flag is absent or true.
func (d *Directory) ListEnabled(ctx context.Context) ([]api.ModelConfig, error) {
	all, err := d.store.ListModels(ctx)
	if err != nil {
		return nil, api.NewStorageError(fmt.Sprintf("listing models: %v", err))
	}
	enabled := make([]api.ModelConfig, 0, len(all))
	for _, m := range all {
		if m.IsEnabled() {
			enabled = append(enabled, m)
		}
	}
	return enabled, nil
}

// SelectAssignment returns up to count distinct model identifiers drawn
// uniformly at random from the enabled models. Fewer are returned when fewer
// models are enabled.
func (d *Directory) SelectAssignment(ctx context.Context, count int) ([]string, error) {
	enabled, err := d.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(enabled))
	for i, m := range enabled {
		ids[i] = m.Model
	}
	d.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	if count < len(ids) {
		ids = ids[:count]
	}
	return ids, nil
}

// Lookup returns the record for modelID. Disabled models are still returned
// so threads assigned before a model was switched off keep working.
func (d *Directory) Lookup(ctx context.Context, modelID string) (api.ModelConfig, error) {
	all, err := d.store.ListModels(ctx)
	if err != nil {
		return api.ModelConfig{}, api.NewStorageError(fmt.Sprintf("listing models: %v", err))
	}
	for _, m := range all {
		if m.Model == modelID {
			return m, nil
		}
	}
	return api.ModelConfig{}, api.NewProviderError(fmt.Sprintf("model %q is not configured", modelID))
}

// Seed upserts the given records, typically the models listed in the
// server configuration.
func (d *Directory) Seed(ctx context.Context, models []api.ModelConfig) error {
	for _, m := range models {
		if err := d.store.UpsertModel(ctx, m); err != nil {
			return fmt.Errorf("seeding model %s: %w", m.Model, err)
		}
	}
	return nil
}
