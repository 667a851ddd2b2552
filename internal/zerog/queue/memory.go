package queue

import (
	"context"
	"sync"
	"time"

	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

// pollInterval is how often MemoryQueue.Reserve and the TTR sweeper check
// for ready work. Real brokers push; this fake polls, which is fine for
// the scale of the tests that use it.
const pollInterval = 10 * time.Millisecond

type memoryJob struct {
	id       uint64
	tube     string
	body     []byte
	reserves int
	timeouts int
	releases int
}

type reservation struct {
	job      *memoryJob
	deadline time.Time
}

// MemoryQueue is an in-process fake tube broker used by unit tests. It
// implements the put/reserve/release/delete/bury vocabulary of the real
// beanstalkd adapter without a network dependency. The ttr passed to Put
// is not tracked: every reservation gets a domainDefaultTTR lease, after
// which the sweeper counts a timeout and makes the job ready again.
type MemoryQueue struct {
	mu        sync.Mutex
	nextID    uint64
	ready     map[string][]*memoryJob // tube -> FIFO of ready jobs
	reserved  map[uint64]*reservation
	watching  map[string]bool
	useTube   string
	closed    bool
	stopSweep chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue watching no tubes and
// using "default".
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{
		ready:     make(map[string][]*memoryJob),
		reserved:  make(map[uint64]*reservation),
		watching:  make(map[string]bool),
		useTube:   "default",
		stopSweep: make(chan struct{}),
	}
	go q.sweepTTR()
	return q
}

func (q *MemoryQueue) sweepTTR() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.mu.Lock()
			now := time.Now()
			for id, r := range q.reserved {
				if now.After(r.deadline) {
					r.job.timeouts++
					q.ready[r.job.tube] = append(q.ready[r.job.tube], r.job)
					delete(q.reserved, id)
				}
			}
			q.mu.Unlock()
		}
	}
}

func (q *MemoryQueue) Put(ctx context.Context, tube string, body []byte, delay, ttr time.Duration) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	job := &memoryJob{id: q.nextID, tube: tube, body: append([]byte(nil), body...)}

	if delay <= 0 {
		q.ready[tube] = append(q.ready[tube], job)
		return job.id, nil
	}

	id := job.id
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return
		}
		q.ready[tube] = append(q.ready[tube], job)
	})
	return id, nil
}

func (q *MemoryQueue) Reserve(ctx context.Context) (uint64, []byte, TubeStats, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if job, ttr, ok := q.tryReserve(); ok {
			stats := TubeStats{Reserves: job.reserves, Timeouts: job.timeouts, Releases: job.releases, State: "reserved"}
			_ = ttr
			return job.id, job.body, stats, nil
		}

		select {
		case <-ctx.Done():
			return 0, nil, TubeStats{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *MemoryQueue) tryReserve() (*memoryJob, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for tube := range q.watching {
		jobs := q.ready[tube]
		if len(jobs) == 0 {
			continue
		}
		job := jobs[0]
		q.ready[tube] = jobs[1:]
		job.reserves++
		ttr := domainDefaultTTR
		q.reserved[job.id] = &reservation{job: job, deadline: time.Now().Add(ttr)}
		return job, ttr, true
	}
	return nil, 0, false
}

// domainDefaultTTR is the lease every MemoryQueue reservation gets,
// whatever ttr was passed to Put. It is 24 hours, not domain.DefaultTTR.
const domainDefaultTTR = 24 * time.Hour

func (q *MemoryQueue) Release(ctx context.Context, id uint64, delay time.Duration) error {
	q.mu.Lock()
	r, ok := q.reserved[id]
	if !ok {
		q.mu.Unlock()
		return zgerrors.New(zgerrors.KindNotFound, "reserved job not found")
	}
	delete(q.reserved, id)
	job := r.job
	job.releases++
	q.mu.Unlock()

	if delay <= 0 {
		q.mu.Lock()
		q.ready[job.tube] = append(q.ready[job.tube], job)
		q.mu.Unlock()
		return nil
	}

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return
		}
		q.ready[job.tube] = append(q.ready[job.tube], job)
	})
	return nil
}

func (q *MemoryQueue) Delete(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.reserved[id]; !ok {
		return zgerrors.New(zgerrors.KindNotFound, "reserved job not found")
	}
	delete(q.reserved, id)
	return nil
}

func (q *MemoryQueue) Bury(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.reserved[id]; !ok {
		return zgerrors.New(zgerrors.KindNotFound, "reserved job not found")
	}
	delete(q.reserved, id)
	return nil
}

func (q *MemoryQueue) ListTubes(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tubes := make([]string, 0, len(q.ready))
	for tube := range q.ready {
		tubes = append(tubes, tube)
	}
	return tubes, nil
}

func (q *MemoryQueue) TubeStats(ctx context.Context, tube string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.watching[tube] {
		return 1, nil
	}
	return 0, nil
}

func (q *MemoryQueue) Watch(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.watching[tube] = true
	if _, ok := q.ready[tube]; !ok {
		q.ready[tube] = nil
	}
	return nil
}

func (q *MemoryQueue) Ignore(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.watching, tube)
	return nil
}

func (q *MemoryQueue) Use(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.useTube = tube
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.stopSweep)
	return nil
}
