package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/observability"
	"github.com/llmarena/arena/pkg/processor"
	"github.com/llmarena/arena/pkg/storage"
	"github.com/llmarena/arena/pkg/transport"
)

// run carries the state of one chat turn.
type run struct {
	engine *Engine
	req    *api.ChatRequest
	w      transport.EventWriter
	owner  string
	state  api.RunState
}

// sideResult is what one side produced.
type sideResult struct {
	side      api.Side
	modelID   string
	model     api.ModelConfig
	content   strings.Builder
	reasoning strings.Builder
	err       error
}

func (r *run) transition(to api.RunState) error {
	if apiErr := api.ValidateRunTransition(r.state, to); apiErr != nil {
		return apiErr
	}
	debug.Log("engine", "run transition", "thread_id", r.req.ThreadID, "from", r.state, "to", to)
	r.state = to
	return nil
}

// fail moves the run to the absorbing Errored state.
func (r *run) fail() {
	if r.state == api.RunClosed || r.state == api.RunErrored {
		return
	}
	r.transition(api.RunErrored)
}

func (r *run) execute(ctx context.Context) error {
	err := r.turn(ctx)
	if err != nil {
		r.fail()
	}
	return err
}

func (r *run) turn(ctx context.Context) error {
	if err := r.transition(api.RunThreadResolving); err != nil {
		return err
	}
	thread, err := r.resolveThread(ctx)
	if err != nil {
		return err
	}

	if err := r.transition(api.RunFanout); err != nil {
		return err
	}
	if err := r.fanout(ctx, thread); err != nil {
		return err
	}

	if err := r.transition(api.RunStreaming); err != nil {
		return err
	}
	// Commit the 200 now. From here on failures are reported in-band.
	if err := r.w.Flush(); err != nil {
		debug.Log("engine", "flush before streaming failed", "thread_id", r.req.ThreadID, "error", err)
	}
	results := r.stream(ctx, thread)

	// Each side has persisted its own answer by now.
	if err := r.transition(api.RunFinalizing); err != nil {
		return err
	}

	if err := r.transition(api.RunClosed); err != nil {
		return err
	}

	if allFailed(results) && ctx.Err() == nil {
		return api.NewProviderError("no model produced a response")
	}
	return nil
}

// resolveThread loads the thread and assigns models when it has none.
func (r *run) resolveThread(ctx context.Context) (*api.Thread, error) {
	e := r.engine
	id := r.req.ThreadID

	thread, err := e.store.GetThread(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		thread = nil
	case err != nil:
		return nil, api.NewStorageError(fmt.Sprintf("loading thread: %v", err))
	}
	if thread != nil && thread.Assigned() {
		return thread, nil
	}

	if err := r.transition(api.RunModelAssigning); err != nil {
		return nil, err
	}

	selected, err := e.models.SelectAssignment(ctx, e.cfg.AssignmentSize)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, api.NewProviderError("no models are enabled")
	}

	req := *r.req
	api.ApplyChatDefaults(&req, e.cfg.DefaultCategory)
	category, initial := req.Category, req.InitialContext
	if thread != nil {
		// Created ahead of time; keep what it was opened with.
		category, initial = thread.Category, thread.InitialContext
	}

	if err := e.store.CreateOrAssign(ctx, id, selected, r.owner, category, initial); err != nil {
		return nil, api.NewStorageError(fmt.Sprintf("assigning models: %v", err))
	}

	thread, err = e.store.GetThread(ctx, id)
	if err != nil || !thread.Assigned() {
		// Another owner's thread, or it vanished between the writes.
		return nil, api.NewThreadNotFoundError(id)
	}

	slog.Info("thread assigned",
		"thread_id", id,
		"models", thread.SelectedModels,
	)
	return thread, nil
}

// fanout replays history and records the user message on every side.
func (r *run) fanout(ctx context.Context, thread *api.Thread) error {
	if thread.HasHistory() {
		if err := r.w.WriteEvent(ctx, api.HistoryEvent(thread)); err != nil {
			return fmt.Errorf("writing history: %w", err)
		}
	}

	msg := api.Message{Role: api.RoleUser, Content: r.req.Message}
	for _, modelID := range thread.SelectedModels {
		err := r.engine.store.AppendMessage(ctx, thread.ID, modelID, msg)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between resolving and recording.
			return api.NewThreadNotFoundError(thread.ID)
		}
		if err != nil {
			return api.NewStorageError(fmt.Sprintf("recording user message: %v", err))
		}
	}
	return nil
}

// stream runs every side concurrently and returns once all have settled.
// A side stores its answer as soon as it ends, without waiting for the
// other one.
func (r *run) stream(ctx context.Context, thread *api.Thread) []*sideResult {
	results := make([]*sideResult, 0, 2)
	var g errgroup.Group
	for i, modelID := range thread.SelectedModels {
		if i > int(api.Side2) {
			break
		}
		side := api.Side(i)
		res := &sideResult{side: side, modelID: modelID}
		results = append(results, res)

		history := append(slices.Clone(thread.Messages(side)),
			api.Message{Role: api.RoleUser, Content: r.req.Message})

		g.Go(func() error {
			r.streamSide(ctx, res, history)
			r.persistSide(ctx, res)
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *run) streamSide(parent context.Context, res *sideResult, messages []api.Message) {
	e := r.engine
	ctx, cancel := context.WithTimeout(parent, e.cfg.ProviderTimeout)
	defer cancel()

	model, err := e.models.Lookup(ctx, res.modelID)
	if err != nil {
		res.err = err
		r.reportFailure(parent, res)
		return
	}
	res.model = model

	format := processor.FormatOf(model)
	proc := e.processors.Select(format)
	sideLabel := res.side.String()

	start := time.Now()
	forward := true
	for chunk, err := range proc.ProcessStream(ctx, messages, model) {
		if err != nil {
			res.err = err
			break
		}
		observability.ChunksTotal.WithLabelValues(sideLabel, string(chunk.Kind)).Inc()

		switch chunk.Kind {
		case api.ChunkContent:
			res.content.WriteString(chunk.Text)
			if !forward {
				continue
			}
			if werr := r.w.WriteEvent(ctx, api.ContentEvent(res.side, chunk.Text)); werr != nil {
				// The client is gone; keep consuming so the answer is stored.
				forward = false
				debug.Log("engine", "stopped forwarding", "side", sideLabel, "error", werr)
			}
		case api.ChunkReasoning:
			res.reasoning.WriteString(chunk.Text)
			debug.Trace("engine", "reasoning chunk", "side", sideLabel, "text", chunk.Text)
		}
	}

	status := "success"
	switch {
	case res.err != nil && parent.Err() != nil:
		status = "cancelled"
	case res.err != nil:
		status = "error"
	}
	observability.ProviderRequestsTotal.WithLabelValues(string(format), model.Model, status).Inc()
	observability.ProviderLatency.WithLabelValues(string(format), model.Model).Observe(time.Since(start).Seconds())

	if res.err != nil {
		r.reportFailure(parent, res)
	}
}

// reportFailure logs a side failure and, when enabled, tells the client.
// The other side is never affected.
func (r *run) reportFailure(ctx context.Context, res *sideResult) {
	slog.Warn("model stream failed",
		"thread_id", r.req.ThreadID,
		"side", res.side.String(),
		"model", res.modelID,
		"error", res.err,
	)
	if !r.engine.cfg.ErrorFrames || ctx.Err() != nil {
		return
	}
	msg := transport.AsAPIError(res.err).Message
	if err := r.w.WriteEvent(ctx, api.ErrorEvent(res.side, msg)); err != nil {
		debug.Log("engine", "error frame not delivered", "side", res.side.String(), "error", err)
	}
}

// persistSide stores one side's answer. The write is detached from the
// request so a disconnect does not discard produced output.
func (r *run) persistSide(ctx context.Context, res *sideResult) {
	e := r.engine
	if res.reasoning.Len() > 0 {
		if res.model.FormatOptions != nil && res.model.FormatOptions.ShowReasoning {
			slog.Info("model reasoning",
				"thread_id", r.req.ThreadID,
				"side", res.side.String(),
				"model", res.modelID,
				"reasoning", debug.Truncate(res.reasoning.String(), 2000),
			)
		} else {
			debug.Log("engine", "model reasoning",
				"side", res.side.String(),
				"bytes", res.reasoning.Len(),
			)
		}
	}

	if res.err != nil && res.content.Len() == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
	defer cancel()
	err := e.store.AppendMessage(pctx, r.req.ThreadID, res.modelID,
		api.Message{Role: api.RoleAssistant, Content: res.content.String()})
	if err != nil {
		observability.PersistFailuresTotal.WithLabelValues(res.side.String()).Inc()
		slog.Error("persisting answer failed",
			"thread_id", r.req.ThreadID,
			"side", res.side.String(),
			"model", res.modelID,
			"error", err,
		)
		return
	}
	debug.Log("engine", "answer persisted",
		"thread_id", r.req.ThreadID,
		"side", res.side.String(),
		"bytes", res.content.Len(),
	)
}

func allFailed(results []*sideResult) bool {
	for _, res := range results {
		if res.err == nil {
			return false
		}
	}
	return len(results) > 0
}
