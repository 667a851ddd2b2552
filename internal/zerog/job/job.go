// Package job implements the Job base behavior (spec §4.4): progress
// and reporting operations whose every mutation is persisted through a
// CAS record-change loop.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/pkg/errors"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// MaxErrors is the default error-count threshold at which
// Base.ContinueRunning gives up and reports a terminal internal error.
const MaxErrors = 3

// maxRecordChangeAttempts bounds the record-change retry loop (spec §4.4).
const maxRecordChangeAttempts = 10

// maxJitter is the upper bound on the backoff slept between CAS retries.
const maxJitter = 100 * time.Millisecond

// tickFlushThreshold is the accrued tickcount at which a Tick flushes
// into Completeness.
const tickFlushThreshold = 0.01

// Job is the uniform lifecycle and persistence contract every job type
// satisfies by embedding *Base.
type Job interface {
	// Run executes the job's unit of work and reports how the Worker
	// should proceed. It is the only method concrete job types implement.
	Run(ctx context.Context) Outcome

	Record() *domain.JobRecord
	SetCAS(cas uint64)

	RecordEvent(ctx context.Context, msg string) bool
	RecordWarning(ctx context.Context, msg string) bool
	RecordError(ctx context.Context, code int, msg string) bool
	RecordResult(ctx context.Context, code int) bool
	SetCompleteness(ctx context.Context, x float64) bool
	AddToCompleteness(ctx context.Context, delta float64) bool
	Tick(ctx context.Context) bool
	KeepAlive()
	Enqueue(ctx context.Context, delay, ttr time.Duration) bool
	ContinueRunning() int
}

// Mutator edits a JobRecord in place inside the record-change loop.
type Mutator func(*domain.JobRecord)

// Base implements every Job operation except Run. Concrete job types
// embed *Base and set their own payload fields alongside the promoted
// JobRecord fields; json.Marshal/Unmarshal on the concrete type then
// serializes both in one flat document, matching the wire shape spec §3
// describes.
type Base struct {
	domain.JobRecord

	mu          sync.Mutex
	store       datastore.Store
	que         queue.Queue
	self        any
	keepAliveFn func()
}

// Init wires a freshly constructed job type. self must be a pointer to
// the concrete struct embedding this Base, used to serialize the full
// record including job-type-specific fields.
func (b *Base) Init(self any, rec domain.JobRecord, store datastore.Store, que queue.Queue) {
	b.self = self
	b.JobRecord = rec
	b.store = store
	b.que = que
}

// SetKeepAliveFunc installs the callback KeepAlive invokes. Nothing in
// this repository installs one, so KeepAlive is a no-op by default.
func (b *Base) SetKeepAliveFunc(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keepAliveFn = fn
}

// Record returns the persisted attributes of this job.
func (b *Base) Record() *domain.JobRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := b.JobRecord
	return &rec
}

// SetCAS overwrites the in-memory cas token, used when splicing a
// freshly read cas into a job constructed from stored data.
func (b *Base) SetCAS(cas uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.JobRecord.CAS = cas
}

// UpdateAttrs applies mutate to the record and persists it.
func (b *Base) UpdateAttrs(ctx context.Context, mutate Mutator) bool {
	return b.recordChange(ctx, mutate)
}

func (b *Base) RecordEvent(ctx context.Context, msg string) bool {
	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.Events = append(r.Events, domain.Event{Timestamp: time.Now().UTC(), Msg: msg})
	})
}

func (b *Base) RecordWarning(ctx context.Context, msg string) bool {
	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.Warnings = append(r.Warnings, domain.Warning{Timestamp: time.Now().UTC(), Msg: msg})
	})
}

func (b *Base) RecordError(ctx context.Context, code int, msg string) bool {
	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.Errors = append(r.Errors, domain.Error{Timestamp: time.Now().UTC(), Code: code, Msg: msg})
		r.ErrorCount++
	})
}

func (b *Base) RecordResult(ctx context.Context, code int) bool {
	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.ResultCode = code
		r.Completeness = 1.0
	})
}

func (b *Base) SetCompleteness(ctx context.Context, x float64) bool {
	outOfRange := x < 0 || x > 1
	clamped := domain.ClampCompleteness(x)

	ok := b.recordChange(ctx, func(r *domain.JobRecord) {
		r.Completeness = clamped
	})
	if outOfRange {
		b.RecordWarning(ctx, fmt.Sprintf("completeness %v out of range, clamped to %v", x, clamped))
	}
	return ok
}

// AddToCompleteness adds delta plus any accrued tick count to the
// current completeness and flushes the tick count to zero, in one
// CAS-protected step.
func (b *Base) AddToCompleteness(ctx context.Context, delta float64) bool {
	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.Completeness = domain.ClampCompleteness(r.Completeness + delta + r.TickCount)
		r.TickCount = 0
	})
}

// Tick accrues a small amount of progress in memory, flushing to the
// datastore only once tickFlushThreshold has built up. This batches
// persistence for fine-grained progress reporting.
func (b *Base) Tick(ctx context.Context) bool {
	b.mu.Lock()
	b.JobRecord.TickCount += b.JobRecord.TickVal
	flush := b.JobRecord.TickCount >= tickFlushThreshold
	b.mu.Unlock()

	if flush {
		return b.AddToCompleteness(ctx, 0)
	}
	return true
}

// KeepAlive invokes the caller-supplied lease-extension callback, if any.
func (b *Base) KeepAlive() {
	b.mu.Lock()
	fn := b.keepAliveFn
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Enqueue persists the job (if it has never been saved) and puts its
// uuid onto its queue, recording the resulting queue job id.
func (b *Base) Enqueue(ctx context.Context, delay, ttr time.Duration) bool {
	b.mu.Lock()
	cas := b.JobRecord.CAS
	tube := b.JobRecord.QueueName
	uuid := b.JobRecord.UUID
	b.mu.Unlock()

	if cas == 0 {
		if !b.recordChange(ctx, func(r *domain.JobRecord) {}) {
			return false
		}
	}

	id, err := b.que.Put(ctx, tube, []byte(uuid), delay, ttr)
	if err != nil || id == 0 {
		logger.Warn("enqueue failed, recording queueJobId=-1", "jobUuid", uuid, "err", err)
		b.RecordWarning(ctx, "enqueue failed")
		return b.recordChange(ctx, func(r *domain.JobRecord) { r.QueueJobID = -1 })
	}

	return b.recordChange(ctx, func(r *domain.JobRecord) {
		r.QueueJobID = int64(id)
		r.QueueKwargs = map[string]any{"delay": delay.Seconds(), "ttr": ttr.Seconds()}
	})
}

// ContinueRunning is the default recovery policy: once errorCount
// reaches MaxErrors the job is treated as terminally failed; otherwise
// it is retried.
func (b *Base) ContinueRunning() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.JobRecord.ErrorCount >= MaxErrors {
		return domain.InternalError
	}
	return domain.NoResult
}

// recordChange is the CAS retry loop every mutation path goes through
// (spec §4.4): up to maxRecordChangeAttempts tries applying mutate
// in-memory then SetWithCAS; on CASMismatch or Locked it jitters,
// reloads from the store, and retries. On exhaustion it logs and
// reports failure; the in-memory object may have diverged from the
// stored one.
func (b *Base) recordChange(ctx context.Context, mutate Mutator) bool {
	for attempt := 0; attempt < maxRecordChangeAttempts; attempt++ {
		b.mu.Lock()
		mutate(&b.JobRecord)
		b.JobRecord.UpdatedAt = time.Now().UTC()
		data, marshalErr := json.Marshal(b.self)
		cas := b.JobRecord.CAS
		key := b.JobRecord.Key()
		b.mu.Unlock()

		if marshalErr != nil {
			logger.Error("job record marshal failed", "key", key, "err", marshalErr)
			return false
		}

		newCas, err := b.store.SetWithCAS(ctx, key, data, cas)
		if err == nil {
			b.mu.Lock()
			b.JobRecord.CAS = newCas
			b.mu.Unlock()
			return true
		}

		kind, known := errors.KindOf(err)
		if !known || (kind != errors.KindCASMismatch && kind != errors.KindLocked) {
			logger.Error("job record-change failed", "key", key, "err", err)
			return false
		}

		time.Sleep(time.Duration(rand.Int63n(int64(maxJitter))))
		if reloadErr := b.reload(ctx); reloadErr != nil {
			logger.Error("job reload failed during record-change retry", "key", key, "err", reloadErr)
			return false
		}
	}

	logger.Error("job record-change loop exhausted", "key", b.Record().Key())
	return false
}

// reload overwrites the in-memory record with the latest stored value,
// picking up its current cas.
func (b *Base) reload(ctx context.Context) error {
	b.mu.Lock()
	key := b.JobRecord.Key()
	b.mu.Unlock()

	value, cas, ok, err := b.store.ReadWithCAS(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.KindNotFound, "job record disappeared: "+key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := json.Unmarshal(value, b.self); err != nil {
		return err
	}
	b.JobRecord.CAS = cas
	return nil
}
