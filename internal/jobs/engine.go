package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noveltoon/backend/internal/analyzer"
	"github.com/noveltoon/backend/internal/compose"
	"github.com/noveltoon/backend/internal/events"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/render"
	"github.com/noveltoon/backend/internal/scratch"
	"github.com/noveltoon/backend/internal/storyboard"
	"github.com/noveltoon/backend/internal/types"
	"github.com/noveltoon/backend/internal/voice"
)

// Deps collects the engine's collaborators; all are required except Relay.
type Deps struct {
	Store    *Store
	Hub      *events.Hub
	Relay    *events.RedisRelay
	Scratch  *scratch.Store
	Analyzer *analyzer.Analyzer
	Builder  *storyboard.Builder
	Renderer *render.Renderer
	Composer *compose.Composer
	Catalog  []voice.Entry
}

// Engine owns job lifecycles: it accepts submissions, drives each job
// through the four stages on its own goroutine, and publishes progress.
type Engine struct {
	log      *logger.Logger
	store    *Store
	hub      *events.Hub
	notifier *Notifier
	scratch  *scratch.Store
	analyzer *analyzer.Analyzer
	builder  *storyboard.Builder
	renderer *render.Renderer
	composer *compose.Composer
	catalog  []voice.Entry

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(d Deps, log *logger.Logger) *Engine {
	return &Engine{
		log:      log.With("service", "job_engine"),
		store:    d.Store,
		hub:      d.Hub,
		notifier: NewNotifier(d.Hub, d.Relay, log),
		scratch:  d.Scratch,
		analyzer: d.Analyzer,
		builder:  d.Builder,
		renderer: d.Renderer,
		composer: d.Composer,
		catalog:  d.Catalog,
	}
}

// Submit registers a job and starts it asynchronously. The returned id is
// valid immediately for Get/Subscribe/Cancel.
func (e *Engine) Submit(inputText string, opts types.Options) string {
	opts.ApplyDefaults()
	id := uuid.NewString()
	now := time.Now().UTC()
	e.store.Create(&types.Job{
		ID:        id,
		InputText: inputText,
		Options:   opts,
		Status:    types.StatusPending,
		Stage:     pipeline.StageInit,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.cancels == nil {
		e.cancels = make(map[string]context.CancelFunc)
	}
	e.cancels[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx, id, inputText, opts)

	e.log.Info("Job submitted", "job_id", id, "text_len", len(inputText))
	return id
}

// Cancel requests cooperative cancellation. Returns false for unknown or
// already-terminal jobs.
func (e *Engine) Cancel(id string) bool {
	job, ok := e.store.Get(id)
	if !ok || job.Status.Terminal() {
		return false
	}
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	e.log.Info("Job cancellation requested", "job_id", id)
	return true
}

func (e *Engine) Get(id string) (types.Job, bool) { return e.store.Get(id) }
func (e *Engine) List() []types.Job               { return e.store.List() }

func (e *Engine) Subscribe(id string) *events.Subscriber { return e.hub.Subscribe(id) }

func (e *Engine) Unsubscribe(id string, sub *events.Subscriber) { e.hub.Unsubscribe(id, sub) }

// Wait blocks until every in-flight job goroutine has returned.
func (e *Engine) Wait() { e.wg.Wait() }

// Shutdown cancels all running jobs and waits for them to finish.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, id, inputText string, opts types.Options) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, id)
		e.mu.Unlock()
	}()

	log := e.log.With("job_id", id)
	var sc *scratch.Scratch

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panicked", "panic", r, "stack", string(debug.Stack()))
			e.fail(id, sc, opts, pipeline.NewError(pipeline.KindExternalService,
				fmt.Sprintf("internal failure: %v", r), nil))
		}
	}()

	if opts.JobTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.JobTimeout())
		defer cancel()
	}

	e.store.Update(id, func(j *types.Job) { j.Status = types.StatusRunning })
	e.progress(id, pipeline.StageInit, 0, "job started")

	var err error
	sc, err = e.scratch.Open(id)
	if err != nil {
		e.fail(id, nil, opts, err)
		return
	}

	// Stage 1: analysis.
	e.progress(id, pipeline.StageAnalyze, pipeline.BandStart(pipeline.StageAnalyze), "analyzing text")
	analyzed, err := e.analyzer.Analyze(ctx, inputText, opts, func(msg string) {
		e.progress(id, pipeline.StageAnalyze, pipeline.BandStart(pipeline.StageAnalyze), msg)
	})
	if err != nil {
		e.fail(id, sc, opts, pipeline.Tag(err, pipeline.StageAnalyze, 0, pipeline.KindExternalService))
		return
	}
	e.progress(id, pipeline.StageAnalyze, pipeline.BandEnd(pipeline.StageAnalyze),
		fmt.Sprintf("analysis complete: %d scenes", analyzed.SceneCount()))

	// Stage 2: storyboard.
	e.progress(id, pipeline.StageStoryboard, pipeline.BandStart(pipeline.StageStoryboard), "building storyboard")
	sb := e.builder.Build(analyzed, opts)
	if err := ctx.Err(); err != nil {
		e.fail(id, sc, opts, pipeline.NewError(pipeline.KindCancelled, "cancelled", err))
		return
	}
	e.progress(id, pipeline.StageStoryboard, pipeline.BandEnd(pipeline.StageStoryboard), "storyboard ready")

	// Stage 3: render.
	e.progress(id, pipeline.StageRender, pipeline.BandStart(pipeline.StageRender), "rendering scenes")
	registry := voice.NewRegistry(e.catalog, opts.NarratorVoice, opts.DefaultVoice)
	rendered, err := e.renderer.Render(ctx, sb, registry, sc, opts, func(done, total int) {
		e.progress(id, pipeline.StageRender, pipeline.RenderProgress(done, total),
			fmt.Sprintf("rendered scene %d/%d", done, total))
	})
	if err != nil {
		e.fail(id, sc, opts, err)
		return
	}
	e.progress(id, pipeline.StageRender, pipeline.BandEnd(pipeline.StageRender), "all scenes rendered")

	// Stage 4: compose.
	e.progress(id, pipeline.StageCompose, pipeline.BandStart(pipeline.StageCompose), "composing video")
	video, err := e.composer.Compose(ctx, rendered, sc, opts)
	if err != nil {
		e.fail(id, sc, opts, err)
		return
	}

	if err := sc.Cleanup(); err != nil {
		log.Warn("Scratch cleanup failed", "error", err)
	}
	e.store.Update(id, func(j *types.Job) {
		j.Status = types.StatusCompleted
		j.Stage = pipeline.StageDone
		j.ProgressPct = 100
		j.Message = "completed"
		j.Result = video
	})
	e.notifier.Completed(context.Background(), id, video)
	log.Info("Job completed", "video_path", video.Path, "duration", video.DurationSeconds)
}

// progress updates the store and emits an event unless the job already
// reached a terminal status.
func (e *Engine) progress(id, stage string, pct int, msg string) {
	updated := e.store.Update(id, func(j *types.Job) {
		j.Stage = stage
		j.ProgressPct = pct
		j.Message = msg
	})
	if !updated {
		return
	}
	// Re-read so the emitted pct reflects the monotonic clamp.
	if job, ok := e.store.Get(id); ok {
		e.notifier.Progress(context.Background(), id, stage, job.ProgressPct, msg)
	}
}

func (e *Engine) fail(id string, sc *scratch.Scratch, opts types.Options, err error) {
	kind := pipeline.KindOf(err)
	detail := pipeline.DetailOf(err)
	cancelled := pipeline.IsCancelled(err)

	status := types.StatusFailed
	if cancelled {
		status = types.StatusCancelled
		kind = pipeline.KindCancelled
	}

	e.store.Update(id, func(j *types.Job) {
		j.Status = status
		j.ErrorKind = string(kind)
		j.ErrorDetail = detail
		j.Message = detail
	})
	pct := 0
	if job, ok := e.store.Get(id); ok {
		pct = job.ProgressPct
	}
	e.notifier.Failed(context.Background(), id, kind, detail, pct)

	if sc != nil && !opts.RetainScratchOnFailure {
		if cErr := sc.Cleanup(); cErr != nil {
			e.log.Warn("Scratch cleanup failed", "job_id", id, "error", cErr)
		}
	}
	e.log.Error("Job failed", "job_id", id, "status", status, "kind", kind, "detail", detail)
}
