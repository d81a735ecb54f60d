package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/auth"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/observability"
	"github.com/llmarena/arena/pkg/processor"
	"github.com/llmarena/arena/pkg/storage"
	"github.com/llmarena/arena/pkg/transport"
)

// ModelDirectory is the part of the model directory the engine needs.
type ModelDirectory interface {
	SelectAssignment(ctx context.Context, count int) ([]string, error)
	Lookup(ctx context.Context, modelID string) (api.ModelConfig, error)
}

// ProcessorSelector picks the processor for a response format.
type ProcessorSelector interface {
	Select(format api.ResponseFormat) processor.Processor
}

// Engine runs chat turns. It is safe for concurrent use.
type Engine struct {
	store      storage.ThreadStore
	models     ModelDirectory
	processors ProcessorSelector
	inflight   *transport.InFlightRegistry
	cfg        Config
}

var (
	_ transport.ChatStreamer  = (*Engine)(nil)
	_ transport.ThreadReader  = (*Engine)(nil)
	_ transport.ThreadCreator = (*Engine)(nil)
)

// New creates an Engine. A nil registry gets a private one; pass a shared
// registry when several engines serve the same process.
func New(store storage.ThreadStore, models ModelDirectory, processors ProcessorSelector, inflight *transport.InFlightRegistry, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: thread store must not be nil")
	}
	if models == nil {
		return nil, errors.New("engine: model directory must not be nil")
	}
	if processors == nil {
		return nil, errors.New("engine: processor selector must not be nil")
	}
	if inflight == nil {
		inflight = transport.NewInFlightRegistry()
	}
	return &Engine{
		store:      store,
		models:     models,
		processors: processors,
		inflight:   inflight,
		cfg:        cfg.withDefaults(),
	}, nil
}

// InFlight returns the registry of running turns.
func (e *Engine) InFlight() *transport.InFlightRegistry { return e.inflight }

// StreamChat runs one chat turn and writes its events to w. A duplicate of
// a turn that is still running returns nil without writing anything.
func (e *Engine) StreamChat(ctx context.Context, req *api.ChatRequest, w transport.EventWriter) error {
	if apiErr := api.ValidateChatRequest(req, e.cfg.Validation); apiErr != nil {
		return apiErr
	}

	r := &run{engine: e, req: req, w: w}
	if err := r.transition(api.RunAuthorizing); err != nil {
		return err
	}

	identity := auth.IdentityFromContext(ctx)
	if identity == nil || identity.Subject == "" {
		r.fail()
		return api.NewUnauthorizedError("Unauthorized")
	}
	r.owner = identity.Owner()
	ctx = storage.SetOwner(ctx, r.owner)

	key := transport.DedupKey(r.owner, req.ThreadID, req.Message)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !e.inflight.TryAcquire(key, cancel) {
		observability.DedupSkippedTotal.Inc()
		debug.Log("engine", "duplicate turn skipped", "thread_id", req.ThreadID)
		return nil
	}
	defer e.inflight.Release(key)

	return r.execute(runCtx)
}

// ReadThread returns the caller's thread.
func (e *Engine) ReadThread(ctx context.Context, threadID string) (*api.Thread, error) {
	identity := auth.IdentityFromContext(ctx)
	if identity == nil {
		return nil, api.NewUnauthorizedError("Unauthorized")
	}
	ctx = storage.SetOwner(ctx, identity.Owner())

	th, err := e.store.GetThread(ctx, threadID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, api.NewThreadNotFoundError(threadID)
	}
	if err != nil {
		return nil, api.NewStorageError(fmt.Sprintf("loading thread: %v", err))
	}
	return th, nil
}

// CreateThread opens an empty thread for the caller. Models are drawn on
// the first chat turn.
func (e *Engine) CreateThread(ctx context.Context, req *api.CreateThreadRequest) (string, error) {
	identity := auth.IdentityFromContext(ctx)
	if identity == nil {
		return "", api.NewUnauthorizedError("Unauthorized")
	}

	category := req.Category
	if category == "" {
		category = e.cfg.DefaultCategory
	}

	id := api.NewThreadID()
	if err := e.store.CreateOrAssign(ctx, id, nil, identity.Owner(), category, req.Context()); err != nil {
		return "", api.NewStorageError(fmt.Sprintf("creating thread: %v", err))
	}
	debug.Log("engine", "thread created", "thread_id", id, "owner", identity.Owner(), "category", category)
	return id, nil
}
