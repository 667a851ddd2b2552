package worker

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// MaxReserves bounds how many times a queue entry may be reserved
// before it is dropped as unprocessable (spec §4.5a).
const MaxReserves = 3

// MaxTimeouts bounds how many lease timeouts a queue entry may accrue
// before it is dropped as unprocessable (spec §4.5a).
const MaxTimeouts = 2

// PollInterval is how long the run loop waits for an upstream pipe
// message before checking the queue (spec §4.5 step 1).
const PollInterval = 2 * time.Second

// retryDelay is the requeue delay used on transient failures (spec §4.5e/g).
const retryDelay = 30 * time.Second

// defaultRunDelay is used when a job's Run result omits a delay.
const defaultRunDelay = 10 * time.Second

// Worker is the supervisor-child run loop (spec §4.5). It opens its own
// Datastore/Queue handles rather than inheriting the parent's, per the
// spec's lifecycle note.
type Worker struct {
	store    datastore.Store
	que      queue.Queue
	registry *job.Registry
	jobTube  string
	codec    *PipeCodec
	incoming chan Frame

	draining  bool
	parentPID int
}

// New creates a Worker. codec is the parent pipe; parentPID is checked
// each loop iteration for the orphan policy.
func New(store datastore.Store, que queue.Queue, registry *job.Registry, jobTube string, codec *PipeCodec, parentPID int) *Worker {
	w := &Worker{
		store:     store,
		que:       que,
		registry:  registry,
		jobTube:   jobTube,
		codec:     codec,
		incoming:  make(chan Frame, 16),
		parentPID: parentPID,
	}
	go w.readLoop()
	return w
}

func (w *Worker) readLoop() {
	for {
		f, ok := w.codec.Recv()
		if !ok {
			close(w.incoming)
			return
		}
		w.incoming <- f
	}
}

// Run executes the run loop until the context is canceled, the parent
// disappears, or the pipe closes.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.codec.Send(Frame{Type: FrameReady}); err != nil {
		return fmt.Errorf("worker: failed to send ready frame: %w", err)
	}
	if err := w.que.Watch(ctx, w.jobTube); err != nil {
		return fmt.Errorf("worker: failed to watch job tube: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !w.waitForUpstream(ctx, PollInterval) {
			logger.Info("worker: parent pipe closed, exiting")
			return nil
		}

		if !w.draining {
			w.tryReserveAndProcess(ctx)
		}

		if !w.parentAlive() {
			logger.Info("worker: parent process gone, exiting")
			return nil
		}
	}
}

func (w *Worker) waitForUpstream(ctx context.Context, timeout time.Duration) bool {
	select {
	case f, ok := <-w.incoming:
		if !ok {
			return false
		}
		w.handleFrame(f)
	case <-time.After(timeout):
	case <-ctx.Done():
	}
	return true
}

func (w *Worker) handleFrame(f Frame) {
	switch f.Type {
	case FrameDrain:
		w.draining = true
	case FrameUndrain:
		w.draining = false
	}
}

func (w *Worker) parentAlive() bool {
	if w.parentPID <= 0 {
		return true
	}
	err := syscall.Kill(w.parentPID, 0)
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) {
		return false
	}
	return true
}

func (w *Worker) tryReserveAndProcess(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()

	id, body, stats, err := w.que.Reserve(rctx)
	if err != nil {
		return
	}
	w.processQueueJob(ctx, id, body, stats)
}

// processQueueJob is the central state machine of spec §4.5.
func (w *Worker) processQueueJob(ctx context.Context, queueJobID uint64, body []byte, stats queue.TubeStats) {
	uuid := string(body)

	j, err := w.registry.GetJob(ctx, uuid, w.store, w.que)
	if err != nil || j == nil {
		w.handleUnloadableJob(ctx, queueJobID, uuid, stats, err)
		return
	}

	rec := j.Record()
	if rec.Running {
		j.RecordError(ctx, domain.InternalError, "job was killed — likely out of memory")
		resultCode := j.ContinueRunning()
		if resultCode != domain.NoResult {
			j.RecordResult(ctx, resultCode)
			_ = w.que.Delete(ctx, queueJobID)
			return
		}
	}

	w.sendRunningJobUUID(uuid)
	j.UpdateAttrs(ctx, func(r *domain.JobRecord) { r.Running = true })

	resultCode, delay := w.runJob(ctx, j)

	j.UpdateAttrs(ctx, func(r *domain.JobRecord) { r.Running = false })
	w.sendRunningJobUUID("")

	_ = w.que.Delete(ctx, queueJobID)
	if resultCode == domain.NoResult {
		j.Enqueue(ctx, delay, domain.DefaultTTR)
	} else {
		j.RecordResult(ctx, resultCode)
	}
}

func (w *Worker) handleUnloadableJob(ctx context.Context, queueJobID uint64, uuid string, stats queue.TubeStats, loadErr error) {
	if stats.Reserves > MaxReserves || stats.Timeouts > MaxTimeouts {
		_ = w.que.Delete(ctx, queueJobID)
		if j, err := w.registry.GetJob(ctx, uuid, w.store, w.que); err == nil && j != nil {
			msg := fmt.Sprintf("more than %d reserves, deleting from queue", MaxReserves)
			if stats.Timeouts > MaxTimeouts {
				msg = fmt.Sprintf("more than %d timeouts, deleting from queue", MaxTimeouts)
			}
			j.RecordError(ctx, domain.InternalError, msg)
			j.RecordResult(ctx, domain.InternalError)
		}
		logger.Warn("worker: dropping unloadable queue entry", "uuid", uuid, "err", loadErr)
		return
	}
	_ = w.que.Release(ctx, queueJobID, retryDelay)
}

// runJob calls job.Run and normalizes its Outcome into (resultCode, delay),
// recording the audit trail the outcome implies (spec §4.5d/e).
func (w *Worker) runJob(ctx context.Context, j job.Job) (int, time.Duration) {
	outcome := func() (o job.Outcome) {
		defer func() {
			if r := recover(); r != nil {
				j.RecordError(ctx, domain.InternalError, fmt.Sprintf("panic: %v", r))
				o = job.Outcome{Kind: job.KindErrorContinue}
			}
		}()
		return j.Run(ctx)
	}()

	switch outcome.Kind {
	case job.KindDone:
		return outcome.Code, 0
	case job.KindContinue:
		return domain.NoResult, outcome.Delay
	case job.KindErrorDone:
		j.RecordError(ctx, outcome.Code, outcome.Msg)
		return outcome.Code, 0
	case job.KindErrorContinue:
		j.RecordError(ctx, domain.InternalError, outcome.Msg)
		return j.ContinueRunning(), retryDelay
	case job.KindWarningDone:
		j.RecordWarning(ctx, outcome.Msg)
		return outcome.Code, 0
	case job.KindWarningContinue:
		j.RecordWarning(ctx, outcome.Msg)
		return j.ContinueRunning(), retryDelay
	default:
		return j.ContinueRunning(), retryDelay
	}
}

func (w *Worker) sendRunningJobUUID(uuid string) {
	if err := w.codec.Send(Frame{Type: FrameRunningJobUUID, Value: uuid}); err != nil {
		logger.Warn("worker: failed to send runningJobUuid frame", "err", err)
	}
}

