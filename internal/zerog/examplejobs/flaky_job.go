package examplejobs

import (
	"context"
	"fmt"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// FlakyJob raises a retryable error FailCount times before succeeding,
// used to exercise the Worker's requeue-on-ErrorContinue path end to end.
type FlakyJob struct {
	*job.Base
	FailCount int `json:"failCount"`
	Attempts  int `json:"attempts"`
}

// FlakyJobType registers FlakyJob.
type FlakyJobType struct{}

func (FlakyJobType) JobType() string        { return "flaky" }
func (FlakyJobType) SchemaVersion() float64 { return 1 }

func (FlakyJobType) Validate(data []byte) error { return nil }

func (FlakyJobType) New(store datastore.Store, que queue.Queue) job.Job {
	j := &FlakyJob{Base: &job.Base{}}
	rec := domain.NewJobRecord("flaky", 1)
	rec.QueueName = "examplejobs_flaky"
	j.Init(j, rec, store, que)
	return j
}

func (j *FlakyJob) Run(ctx context.Context) job.Outcome {
	j.Attempts++
	j.UpdateAttrs(ctx, func(r *domain.JobRecord) {})

	if j.Attempts <= j.FailCount {
		return job.RaiseErrorContinue(fmt.Sprintf("attempt %d/%d failed", j.Attempts, j.FailCount))
	}
	return job.Done(200)
}
