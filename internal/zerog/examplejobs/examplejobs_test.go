package examplejobs

import (
	"context"
	"testing"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/job"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

func TestSleepJob_RunCompletesAndTicksCompleteness(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := SleepJobType{}.New(store, que).(*SleepJob)
	j.Seconds = 0 // clamped to one second (ten sleepStep ticks)

	outcome := j.Run(context.Background())
	if !outcome.Terminal() || outcome.Kind != job.KindDone {
		t.Fatalf("expected a terminal Done outcome, got %+v", outcome)
	}
	if j.Record().Completeness != 1.0 {
		t.Errorf("expected completeness 1.0 after the sleep loop, got %v", j.Record().Completeness)
	}
}

func TestSleepJob_RunStopsOnCancellation(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := SleepJobType{}.New(store, que).(*SleepJob)
	j.Seconds = 10

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := j.Run(ctx)
	if outcome.Kind != job.KindErrorDone {
		t.Errorf("expected KindErrorDone on cancellation, got %+v", outcome)
	}
}

func TestFlakyJob_RetriesBeforeSucceeding(t *testing.T) {
	store := datastore.NewMemoryStore()
	que := queue.NewMemoryQueue()
	defer que.Close()

	j := FlakyJobType{}.New(store, que).(*FlakyJob)
	j.FailCount = 2

	ctx := context.Background()
	for i := 0; i < j.FailCount; i++ {
		outcome := j.Run(ctx)
		if outcome.Kind != job.KindErrorContinue {
			t.Fatalf("attempt %d: expected KindErrorContinue, got %+v", i+1, outcome)
		}
	}

	outcome := j.Run(ctx)
	if !outcome.Terminal() || outcome.Kind != job.KindDone {
		t.Fatalf("expected a terminal Done outcome after FailCount retries, got %+v", outcome)
	}
	if j.Attempts != j.FailCount+1 {
		t.Errorf("expected Attempts %d, got %d", j.FailCount+1, j.Attempts)
	}
}
