package worker

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// doneJob always finishes successfully with code 200.
type doneJob struct {
	*job.Base
}

func (j *doneJob) Run(ctx context.Context) job.Outcome { return job.Done(200) }

type doneJobType struct{}

func (doneJobType) JobType() string       { return "done" }
func (doneJobType) SchemaVersion() float64 { return 1 }
func (doneJobType) Validate(data []byte) error { return nil }
func (doneJobType) New(store datastore.Store, que queue.Queue) job.Job {
	j := &doneJob{Base: &job.Base{}}
	j.Init(j, domain.NewJobRecord("done", 1), store, que)
	return j
}

func newTestWorker(t *testing.T, store datastore.Store, que queue.Queue, registry *job.Registry) (*Worker, *PipeCodec) {
	t.Helper()
	pr, pw := io.Pipe()
	parentCodec := NewPipeCodec(pr, io.Discard)
	childCodec := NewPipeCodec(strings.NewReader(""), pw)
	_ = parentCodec
	w := New(store, que, registry, "test_jobs", childCodec, 0)
	return w, childCodec
}

func TestWorker_ProcessQueueJobRunsToCompletion(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	registry := job.NewRegistry()
	registry.AddClasses([]job.Type{doneJobType{}})

	ctx := context.Background()

	jt := doneJobType{}.New(store, que)
	jt.RecordEvent(ctx, "created")
	rec := jt.Record()

	w := &Worker{store: store, que: que, registry: registry, jobTube: "test_jobs",
		codec: NewPipeCodec(strings.NewReader(""), io.Discard)}

	w.processQueueJob(ctx, 1, []byte(rec.UUID), queue.TubeStats{})

	value, _, ok, err := store.ReadWithCAS(ctx, rec.Key())
	if err != nil || !ok {
		t.Fatalf("expected job record to exist: ok=%v err=%v", ok, err)
	}
	var stored domain.JobRecord
	if err := json.Unmarshal(value, &stored); err != nil {
		t.Fatalf("stored record does not decode: %v", err)
	}
	if stored.ResultCode != 200 || stored.Completeness != 1.0 {
		t.Fatalf("expected resultCode 200 and completeness 1.0, got %d and %v", stored.ResultCode, stored.Completeness)
	}
}

func TestWorker_HandleUnloadableJobDeletesAfterMaxReserves(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()
	ctx := context.Background()
	_ = que.Watch(ctx, "test_jobs")

	registry := job.NewRegistry()
	w := &Worker{store: store, que: que, registry: registry, jobTube: "test_jobs"}

	id, err := que.Put(ctx, "test_jobs", []byte("unknown-uuid"), 0, time.Minute)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	rid, body, stats, err := que.Reserve(rctx)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if rid != id {
		t.Fatalf("expected id %d, got %d", id, rid)
	}

	stats.Reserves = MaxReserves + 1
	w.handleUnloadableJob(ctx, rid, string(body), stats, nil)

	if err := que.Delete(ctx, rid); err == nil {
		t.Fatal("expected queue entry to already be deleted")
	}
}
