package job

import (
	"context"
	"testing"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

// testJob is a minimal concrete job type embedding *Base, used to
// exercise the record-change loop and progress helpers directly.
type testJob struct {
	*Base
	Payload string `json:"payload"`
}

func newTestJob(store datastore.Store, que queue.Queue) *testJob {
	j := &testJob{Base: &Base{}}
	rec := domain.NewJobRecord("test", 1)
	rec.QueueName = "test_jobs"
	j.Init(j, rec, store, que)
	return j
}

func (j *testJob) Run(ctx context.Context) Outcome { return Done(200) }

func TestBase_RecordEventPersists(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)

	if !j.RecordEvent(context.Background(), "started") {
		t.Fatal("RecordEvent reported failure")
	}

	rec := j.Record()
	if len(rec.Events) != 1 || rec.Events[0].Msg != "started" {
		t.Errorf("expected one event 'started', got %+v", rec.Events)
	}
	if rec.CAS == 0 {
		t.Error("expected cas to advance past 0 after a successful write")
	}
}

func TestBase_RecordErrorIncrementsCount(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)

	if !j.RecordError(context.Background(), 500, "boom") {
		t.Fatal("RecordError reported failure")
	}
	if j.Record().ErrorCount != 1 {
		t.Errorf("expected ErrorCount 1, got %d", j.Record().ErrorCount)
	}
}

func TestBase_ContinueRunningTerminatesAfterMaxErrors(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)
	ctx := context.Background()

	for i := 0; i < MaxErrors; i++ {
		if !j.RecordError(ctx, 500, "fail") {
			t.Fatalf("RecordError %d failed", i)
		}
	}

	if got := j.ContinueRunning(); got != domain.InternalError {
		t.Errorf("expected InternalError after %d errors, got %d", MaxErrors, got)
	}
}

func TestBase_SetCompletenessClampsAndWarns(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)
	ctx := context.Background()

	if !j.SetCompleteness(ctx, 1.5) {
		t.Fatal("SetCompleteness reported failure")
	}

	rec := j.Record()
	if rec.Completeness != 1.0 {
		t.Errorf("expected clamped completeness 1.0, got %v", rec.Completeness)
	}
	if len(rec.Warnings) != 1 {
		t.Errorf("expected one warning about out-of-range completeness, got %d", len(rec.Warnings))
	}
}

func TestBase_TickFlushesAtThreshold(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)
	ctx := context.Background()
	j.JobRecord.TickVal = 0.005

	for i := 0; i < 3; i++ {
		if !j.Tick(ctx) {
			t.Fatalf("Tick %d failed", i)
		}
	}

	rec := j.Record()
	if rec.Completeness <= 0 {
		t.Errorf("expected completeness to have flushed, got %v", rec.Completeness)
	}
}

func TestBase_EnqueuePersistsAndPuts(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()
	_ = que.Watch(context.Background(), "test_jobs")

	j := newTestJob(store, que)
	ctx := context.Background()

	if !j.Enqueue(ctx, 0, time.Minute) {
		t.Fatal("Enqueue reported failure")
	}

	rec := j.Record()
	if rec.QueueJobID <= 0 {
		t.Errorf("expected a positive queueJobId, got %d", rec.QueueJobID)
	}

	_, _, _, err := que.Reserve(ctx)
	if err != nil {
		t.Fatalf("expected enqueued job to be reservable: %v", err)
	}
}

func TestBase_RecordChangeRetriesOnExternalCASAdvance(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := newTestJob(store, que)
	ctx := context.Background()

	if !j.RecordEvent(ctx, "first") {
		t.Fatal("initial RecordEvent failed")
	}

	// Simulate a concurrent writer advancing the stored cas out from
	// under this job's in-memory copy.
	value, cas, ok, err := store.ReadWithCAS(ctx, j.Record().Key())
	if err != nil || !ok {
		t.Fatalf("ReadWithCAS failed: ok=%v err=%v", ok, err)
	}
	if _, err := store.SetWithCAS(ctx, j.Record().Key(), value, cas); err != nil {
		t.Fatalf("external SetWithCAS failed: %v", err)
	}

	if !j.RecordEvent(ctx, "second") {
		t.Fatal("expected RecordEvent to succeed after reloading past the external write")
	}

	rec := j.Record()
	if len(rec.Events) != 2 {
		t.Errorf("expected 2 events after reload+retry, got %d", len(rec.Events))
	}
}
