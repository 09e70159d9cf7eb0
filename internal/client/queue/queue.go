// Package queue owns the list of upload tasks and drives their execution:
// bounded concurrency across destination containers, strictly sequential
// writes within one container, retry with backoff, pause/resume and
// cancellation. All state changes flow out on a single multiplexed event
// stream consumed by the reconciliation engine and any frontend.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/love-developer/eras/internal/client/classify"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/love-developer/eras/internal/client/transfer"
	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/logging"
)

var (
	ErrUnknownTask      = errors.New("unknown task")
	ErrBadTransition    = errors.New("invalid state transition")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Defaults; all overridable through Deps.
const (
	defaultConcurrency    = 3
	defaultBaseDelay      = 2 * time.Second
	defaultDirectTimeout  = 30 * time.Second
	defaultChunkedTimeout = 10 * time.Minute

	maxRetriesDirect  = 2
	maxRetriesChunked = 3

	maxFailMessage = 200
)

// Deps are the queue's injected collaborators. No ambient singletons: the
// storage client, clock and RNG all arrive here so tests are deterministic.
type Deps struct {
	Strategies transfer.Set

	// OpenSource returns the byte source for a file. Called once per
	// attempt; for vault-backed files falling back to a client-side
	// transfer it is expected to fetch the stored bytes.
	OpenSource func(f models.FileInfo) (io.ReadCloser, error)

	// Compress, when set, wraps the byte source for tasks whose
	// compression path was forced. Best effort: a nil func means
	// compression is skipped entirely.
	Compress func(f models.FileInfo, r io.ReadCloser) (io.ReadCloser, int64, error)

	Logger logging.Logger
	Clock  Clock
	Rand   *rand.Rand

	// Concurrency bounds simultaneous attempts across containers.
	Concurrency int

	BaseDelay      time.Duration
	DirectTimeout  time.Duration
	ChunkedTimeout time.Duration
}

// Options qualifies one Enqueue call.
type Options struct {
	// ContainerID is the destination container (the capsule's storage
	// namespace). Tasks sharing it upload strictly sequentially.
	ContainerID string

	// Compress forces the compression path for eligible images.
	Compress bool

	// MaxCompressDimension overrides the classifier's raster ceiling.
	MaxCompressDimension int
}

type taskState struct {
	task *models.UploadTask

	cancelAttempt context.CancelFunc
	pauseWanted   bool
	userCanceled  bool

	resumeCh chan struct{}
	cancelCh chan struct{}
}

type lane struct {
	ch chan *taskState
}

// Queue drives upload tasks to completion.
type Queue struct {
	deps Deps

	rootCtx context.Context
	stop    context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*taskState
	lanes map[string]*lane

	// randMu guards deps.Rand: lanes back off concurrently and
	// math/rand.Rand is not goroutine-safe.
	randMu sync.Mutex

	sem    chan struct{}
	events chan Event
	wg     sync.WaitGroup
}

// New builds a Queue. Zero-valued Deps fields get defaults; Strategies and
// OpenSource are required.
func New(deps Deps) *Queue {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	if deps.BaseDelay <= 0 {
		deps.BaseDelay = defaultBaseDelay
	}
	if deps.DirectTimeout <= 0 {
		deps.DirectTimeout = defaultDirectTimeout
	}
	if deps.ChunkedTimeout <= 0 {
		deps.ChunkedTimeout = defaultChunkedTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		deps:    deps,
		rootCtx: ctx,
		stop:    cancel,
		tasks:   make(map[string]*taskState),
		lanes:   make(map[string]*lane),
		sem:     make(chan struct{}, deps.Concurrency),
		events:  make(chan Event, 128),
	}
}

// Events returns the multiplexed event stream. The channel is buffered;
// consumers must drain it for uploads to make progress under load.
func (q *Queue) Events() <-chan Event { return q.events }

// Enqueue classifies each file and creates one queued task per file.
func (q *Queue) Enqueue(ctx context.Context, files []models.FileInfo, opts Options) []models.UploadTask {
	out := make([]models.UploadTask, 0, len(files))

	for _, f := range files {
		c := classify.Classify(classify.Input{
			Name:      f.Name,
			MimeType:  f.MimeType,
			SizeBytes: f.SizeBytes,
			Width:     f.Width,
			Height:    f.Height,
		}, opts.MaxCompressDimension)

		task := &models.UploadTask{
			ID:             uuid.NewString(),
			Source:         f,
			Classification: c,
			ContainerID:    opts.ContainerID,
			Status:         models.StatusQueued,
			TotalBytes:     f.SizeBytes,
			Compress:       opts.Compress && c.Compressible,
		}
		plan := transfer.Plan(task)
		task.Strategy = string(plan[len(plan)-1])
		task.MaxRetries = maxRetriesDirect
		if task.Strategy == string(transfer.KindChunked) {
			task.MaxRetries = maxRetriesChunked
		}

		ts := &taskState{
			task:     task,
			resumeCh: make(chan struct{}, 1),
			cancelCh: make(chan struct{}),
		}

		q.mu.Lock()
		q.tasks[task.ID] = ts
		ln := q.laneFor(task.ContainerID)
		q.mu.Unlock()

		q.emit(ts, EventQueued)
		ln.ch <- ts

		out = append(out, *task)
	}

	return out
}

// laneFor returns the container's lane, starting its goroutine on first use.
// Callers hold q.mu.
func (q *Queue) laneFor(containerID string) *lane {
	if ln, ok := q.lanes[containerID]; ok {
		return ln
	}
	ln := &lane{ch: make(chan *taskState, 64)}
	q.lanes[containerID] = ln

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.rootCtx.Done():
				return
			case ts := <-ln.ch:
				q.mu.Lock()
				skip := ts.task.Status.Terminal()
				q.mu.Unlock()
				if skip {
					continue
				}

				select {
				case q.sem <- struct{}{}:
				case <-q.rootCtx.Done():
					return
				}
				q.runTask(ts)
				<-q.sem
			}
		}
	}()

	return ln
}

// runTask executes one task until it is terminal or parked. It owns the
// task's status while running; the lane stays blocked for the duration,
// which is what guarantees same-container sequential writes.
func (q *Queue) runTask(ts *taskState) {
	task := ts.task

	q.setStatus(ts, models.StatusUploading, EventStarted)

	for {
		err := q.attempt(ts)
		if err == nil {
			q.setStatus(ts, models.StatusCompleted, EventCompleted)
			return
		}

		q.mu.Lock()
		paused := ts.pauseWanted
		canceled := ts.userCanceled
		q.mu.Unlock()

		switch {
		case canceled:
			q.setStatus(ts, models.StatusCanceled, EventCanceled)
			q.releaseLocal(ts)
			return

		case paused:
			q.setStatus(ts, models.StatusPaused, EventPaused)
			select {
			case <-ts.resumeCh:
				q.setStatus(ts, models.StatusUploading, EventResumed)
				continue
			case <-ts.cancelCh:
				q.setStatus(ts, models.StatusCanceled, EventCanceled)
				q.releaseLocal(ts)
				return
			case <-q.rootCtx.Done():
				return
			}
		}

		kind := common.KindOf(err)
		q.mu.Lock()
		task.FailKind = string(kind)
		task.FailMessage = truncate(err.Error(), maxFailMessage)
		retryable := kind.Retryable() && task.RetryCount < task.MaxRetries
		if retryable {
			task.RetryCount++
		}
		attempt := task.RetryCount
		q.mu.Unlock()

		if !retryable {
			q.logger().Warn(q.rootCtx, "task failed", "task_id", task.ID, "kind", kind, "retries", task.RetryCount)
			q.setStatus(ts, models.StatusFailed, EventFailed)
			return
		}

		q.emit(ts, EventRetrying)
		if !q.backoff(ts, attempt) {
			return
		}
	}
}

// attempt runs one pass of the strategy chain under a per-attempt deadline.
func (q *Queue) attempt(ts *taskState) error {
	task := ts.task

	plan := transfer.Plan(task)
	if task.RetryCount > 0 {
		plan = transfer.Escalate(task)
	}

	timeout := q.deps.DirectTimeout
	if plan[len(plan)-1] == transfer.KindChunked {
		timeout = q.deps.ChunkedTimeout
	}

	attemptCtx, cancel := context.WithTimeout(q.rootCtx, timeout)
	defer cancel()

	q.mu.Lock()
	ts.cancelAttempt = cancel
	q.mu.Unlock()

	up := &transfer.Upload{
		Task: task,
		Open: func() (io.ReadCloser, error) { return q.openSource(task) },
		Progress: func(sent int64) {
			q.emit(ts, EventProgress)
		},
		// strategies run on the lane goroutine while Task/Tasks take
		// snapshots; all task writes go through the queue's lock
		Mutate: func(fn func(*models.UploadTask)) {
			q.mu.Lock()
			fn(task)
			q.mu.Unlock()
		},
	}

	ref, err := q.deps.Strategies.Chain(plan).Attempt(attemptCtx, up)
	if err == nil {
		q.mu.Lock()
		task.Result = &ref
		q.mu.Unlock()
		return nil
	}

	// a deadline the user didn't ask for is a network failure
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewUploadError(common.FailNetwork, err)
	}
	return err
}

func (q *Queue) openSource(task *models.UploadTask) (io.ReadCloser, error) {
	src, err := q.deps.OpenSource(task.Source)
	if err != nil {
		return nil, err
	}
	if task.Compress && q.deps.Compress != nil {
		compressed, size, cerr := q.deps.Compress(task.Source, src)
		if cerr != nil {
			// best effort: fall through to the original bytes
			q.logger().Warn(q.rootCtx, "compression failed, uploading original", "task_id", task.ID, "err", cerr)
			return src, nil
		}
		if size > 0 {
			q.mu.Lock()
			task.TotalBytes = size
			q.mu.Unlock()
		}
		return compressed, nil
	}
	return src, nil
}

// backoff waits attempt*base plus jitter. Returns false if the queue shut
// down or the task was canceled while waiting.
func (q *Queue) backoff(ts *taskState, attempt int) bool {
	delay := time.Duration(attempt) * q.deps.BaseDelay
	q.randMu.Lock()
	delay += time.Duration(q.deps.Rand.Int63n(int64(q.deps.BaseDelay)))
	q.randMu.Unlock()

	select {
	case <-q.deps.Clock.After(delay):
		return true
	case <-ts.cancelCh:
		q.setStatus(ts, models.StatusCanceled, EventCanceled)
		q.releaseLocal(ts)
		return false
	case <-q.rootCtx.Done():
		return false
	}
}

// Pause suspends an uploading task. Resuming a chunked task later continues
// from the last server-confirmed offset.
func (q *Queue) Pause(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownTask
	}
	if ts.task.Status != models.StatusUploading {
		return fmt.Errorf("%w: pause from %s", ErrBadTransition, ts.task.Status)
	}

	ts.pauseWanted = true
	if ts.cancelAttempt != nil {
		ts.cancelAttempt()
	}
	return nil
}

// Resume continues a paused task.
func (q *Queue) Resume(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownTask
	}
	if ts.task.Status != models.StatusPaused && !ts.pauseWanted {
		return fmt.Errorf("%w: resume from %s", ErrBadTransition, ts.task.Status)
	}

	ts.pauseWanted = false
	select {
	case ts.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// Retry re-queues a failed task. The retry budget is shared with automatic
// retries; once MaxRetries is spent the task stays failed.
func (q *Queue) Retry(taskID string) error {
	q.mu.Lock()

	ts, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownTask
	}
	if ts.task.Status != models.StatusFailed {
		q.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", ErrBadTransition, ts.task.Status)
	}
	if ts.task.RetryCount >= ts.task.MaxRetries {
		q.mu.Unlock()
		return ErrRetriesExhausted
	}

	ts.task.RetryCount++
	ts.task.Status = models.StatusQueued
	ts.task.FailKind = ""
	ts.task.FailMessage = ""
	ln := q.laneFor(ts.task.ContainerID)
	q.mu.Unlock()

	q.emit(ts, EventQueued)
	ln.ch <- ts
	return nil
}

// Cancel aborts a task in any non-terminal state, stopping an in-flight
// transfer and releasing local resources.
func (q *Queue) Cancel(taskID string) error {
	q.mu.Lock()

	ts, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownTask
	}
	if ts.task.Status.Terminal() {
		q.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrBadTransition, ts.task.Status)
	}
	if ts.userCanceled {
		q.mu.Unlock()
		return nil
	}

	ts.userCanceled = true
	status := ts.task.Status
	if ts.cancelAttempt != nil {
		ts.cancelAttempt()
	}
	close(ts.cancelCh)

	// a task still waiting in its lane never reaches runTask again;
	// mark it terminal here
	if status == models.StatusQueued {
		ts.task.Status = models.StatusCanceled
		q.mu.Unlock()
		q.emit(ts, EventCanceled)
		q.releaseLocal(ts)
		return nil
	}
	q.mu.Unlock()
	return nil
}

// releaseLocal revokes any locally created preview reference.
func (q *Queue) releaseLocal(ts *taskState) {
	q.mu.Lock()
	ts.task.Thumbnail = ""
	q.mu.Unlock()
}

// Task returns a snapshot of one task.
func (q *Queue) Task(taskID string) (models.UploadTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts, ok := q.tasks[taskID]
	if !ok {
		return models.UploadTask{}, ErrUnknownTask
	}
	return *ts.task, nil
}

// Tasks returns snapshots of all tasks.
func (q *Queue) Tasks() []models.UploadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.UploadTask, 0, len(q.tasks))
	for _, ts := range q.tasks {
		out = append(out, *ts.task)
	}
	return out
}

// Close stops all lanes and closes the event stream once workers exit.
func (q *Queue) Close() {
	q.stop()
	q.wg.Wait()
	close(q.events)
}

func (q *Queue) setStatus(ts *taskState, status models.TaskStatus, ev EventType) {
	q.mu.Lock()
	ts.task.Status = status
	q.mu.Unlock()
	q.emit(ts, ev)
}

func (q *Queue) emit(ts *taskState, ev EventType) {
	q.mu.Lock()
	snapshot := *ts.task
	q.mu.Unlock()

	select {
	case q.events <- Event{TaskID: snapshot.ID, Type: ev, Task: snapshot}:
	case <-q.rootCtx.Done():
	}
}

func (q *Queue) logger() logging.Logger {
	if q.deps.Logger != nil {
		return q.deps.Logger
	}
	return noopLogger{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (noopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (noopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (noopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (noopLogger) With(args ...any) logging.Logger                    { return noopLogger{} }
