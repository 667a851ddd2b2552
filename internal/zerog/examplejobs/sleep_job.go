// Package examplejobs ships the demonstration job types the original
// source's examples/basic_example/basic_job.py stood in for: test/demo
// fixtures, not part of the core contract.
package examplejobs

import (
	"context"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// sleepStep is how long SleepJob sleeps between completeness ticks.
const sleepStep = 100 * time.Millisecond

// SleepJob sleeps for Seconds, reporting completeness in even steps
// along the way, mirroring basic_job.py's pattern of calling
// set_completeness in a loop.
type SleepJob struct {
	*job.Base
	Seconds int `json:"seconds"`
}

// SleepJobType registers SleepJob.
type SleepJobType struct{}

func (SleepJobType) JobType() string        { return "sleep" }
func (SleepJobType) SchemaVersion() float64 { return 1 }

func (SleepJobType) Validate(data []byte) error { return nil }

func (SleepJobType) New(store datastore.Store, que queue.Queue) job.Job {
	j := &SleepJob{Base: &job.Base{}}
	rec := domain.NewJobRecord("sleep", 1)
	rec.QueueName = "examplejobs_sleep"
	j.Init(j, rec, store, que)
	return j
}

func (j *SleepJob) Run(ctx context.Context) job.Outcome {
	if j.Seconds <= 0 {
		j.Seconds = 1
	}
	steps := int(time.Duration(j.Seconds) * time.Second / sleepStep)
	if steps == 0 {
		steps = 1
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return job.RaiseErrorFinish(domain.InternalError, "canceled")
		case <-time.After(sleepStep):
		}
		j.SetCompleteness(ctx, float64(i)/float64(steps))
	}

	return job.Done(200)
}
