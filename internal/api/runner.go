package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lnskit/internal/events"
	"lnskit/internal/opt"
	"lnskit/internal/store"
	"lnskit/internal/vrp"
)

// MessageRunStatus carries the JSON encoded store.Run. It is published on
// every status change; solver progress uses the opt event types.
const MessageRunStatus = "run.status"

// Notifier receives the final state of every run. eventType is "run."
// followed by the terminal status.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload []byte) error
}

// Runner executes submitted runs in the background, at most maxConcurrent at once.
type Runner struct {
	store  store.Store
	broker events.Broker
	log    zerolog.Logger
	sem    chan struct{}
	notify Notifier

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(st store.Store, broker events.Broker, maxConcurrent int, log zerolog.Logger) *Runner {
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		store:   st,
		broker:  broker,
		log:     log,
		sem:     make(chan struct{}, maxConcurrent),
		base:    base,
		stop:    stop,
		cancels: map[string]context.CancelFunc{},
	}
}

// SetNotifier registers n for terminal run states. Call it before the
// first Submit.
func (r *Runner) SetNotifier(n Notifier) { r.notify = n }

// Submit starts run id in the background. The run waits for a free slot
// while queued.
func (r *Runner) Submit(id string, inst *vrp.Instance, p opt.Params, restarts int) {
	ctx, cancel := context.WithCancel(r.base)
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, id)
			r.mu.Unlock()
			cancel()
		}()
		r.execute(ctx, id, inst, p, restarts)
	}()
}

// Cancel stops a queued or running run. It reports whether the run was
// known to this runner.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active reports runs submitted but not yet finished.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Shutdown cancels every run and waits for them to record their outcome.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, id string, inst *vrp.Instance, p opt.Params, restarts int) {
	log := r.log.With().Str("run", id).Logger()
	// store writes must outlive a cancelled run
	storeCtx := context.WithoutCancel(ctx)

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		r.fail(storeCtx, log, id, ctx.Err())
		return
	}
	defer func() { <-r.sem }()

	if err := r.store.StartRun(storeCtx, id); err != nil {
		log.Error().Err(err).Msg("start run")
		return
	}
	r.publishStatus(storeCtx, id)

	solver := &opt.Solver{
		Params: p,
		Log:    log,
		OnEvent: func(e opt.Event) {
			data, err := json.Marshal(e)
			if err != nil {
				return
			}
			r.broker.Publish(id, events.Message{Type: e.Type, Data: data})
		},
	}
	res, err := solver.SolveRestarts(ctx, inst, restarts)
	if err != nil {
		r.fail(storeCtx, log, id, err)
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		r.fail(storeCtx, log, id, err)
		return
	}
	if err := r.store.FinishRun(storeCtx, id, res.Cost, data); err != nil {
		log.Error().Err(err).Msg("finish run")
		return
	}
	log.Info().Float64("cost", res.Cost).Int("iterations", res.Metrics.Iterations).Msg("run succeeded")
	r.publishStatus(storeCtx, id)
}

func (r *Runner) fail(ctx context.Context, log zerolog.Logger, id string, cause error) {
	status := store.StatusFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		status = store.StatusCancelled
	}
	log.Warn().Err(cause).Str("status", string(status)).Msg("run stopped")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.FailRun(ctx, id, status, cause.Error()); err != nil {
		log.Error().Err(err).Msg("record run failure")
		return
	}
	r.publishStatus(ctx, id)
}

func (r *Runner) publishStatus(ctx context.Context, id string) {
	run, err := r.store.GetRun(ctx, id)
	if err != nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	r.broker.Publish(id, events.Message{Type: MessageRunStatus, Data: data})
	if r.notify != nil && run.Status.Terminal() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := r.notify.Notify(ctx, "run."+string(run.Status), data); err != nil {
				r.log.Error().Err(err).Str("run", id).Msg("notify")
			}
		}()
	}
}
