package mgmt

import (
	"context"
	"testing"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
)

func TestManager_UpdateWorkersDiscoversFromTubes(t *testing.T) {
	que := queue.NewMemoryQueue()
	defer que.Close()
	ctx := context.Background()

	workerID := domain.MakeWorkerID(domain.WorkerType, "host1", "svc", 42)

	// A worker's control channel must exist (be watched) for it to show
	// up in the updates-tube-based tube listing.
	workerChan := NewChannel(que, workerID)
	if err := workerChan.Attach(ctx); err != nil {
		t.Fatalf("worker Attach failed: %v", err)
	}

	m := NewManager(que, "updates")
	if err := m.Attach(ctx); err != nil {
		t.Fatalf("manager Attach failed: %v", err)
	}

	if err := m.UpdateWorkers(ctx); err != nil {
		t.Fatalf("UpdateWorkers failed: %v", err)
	}

	workers := m.Workers()
	if _, ok := workers[workerID]; !ok {
		t.Fatalf("expected %s to be discovered, got %+v", workerID, workers)
	}
}

func TestManager_PollUpdatesChannelTracksJobAndInfo(t *testing.T) {
	que := queue.NewMemoryQueue()
	defer que.Close()
	ctx := context.Background()

	workerID := domain.MakeWorkerID(domain.WorkerType, "host1", "svc", 1)

	m := NewManager(que, "updates")
	if err := m.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	now := time.Now().UTC()
	if err := m.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype: domain.MsgJob, WorkerID: workerID, UUID: "job-1",
		Action: domain.JobActionStart, Timestamp: now,
	}); err != nil {
		t.Fatalf("SendMsg job failed: %v", err)
	}
	if err := m.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype: domain.MsgInfo, WorkerID: workerID, State: "running", Timestamp: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("SendMsg info failed: %v", err)
	}

	m.PollUpdatesChannel(ctx)

	workers := m.Workers()
	w, ok := workers[workerID]
	if !ok {
		t.Fatalf("expected worker %s to be tracked", workerID)
	}
	if w.RunningJobUUID != "job-1" {
		t.Errorf("expected running job job-1, got %q", w.RunningJobUUID)
	}
	if w.State != "running" {
		t.Errorf("expected state running, got %q", w.State)
	}
}

func TestManager_HostIsDrained(t *testing.T) {
	que := queue.NewMemoryQueue()
	defer que.Close()
	ctx := context.Background()

	workerID := domain.MakeWorkerID(domain.WorkerType, "host1", "svc", 1)

	m := NewManager(que, "updates")
	if err := m.Attach(ctx); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if err := m.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype: domain.MsgInfo, WorkerID: workerID, State: "draining",
	}); err != nil {
		t.Fatalf("SendMsg failed: %v", err)
	}
	m.PollUpdatesChannel(ctx)

	if !m.HostIsDrained("host1") {
		t.Fatal("expected host1 to be drained")
	}

	if err := m.updatesChannel.SendMsg(ctx, domain.Message{
		Msgtype: domain.MsgJob, WorkerID: workerID, UUID: "job-1", Action: domain.JobActionStart,
	}); err != nil {
		t.Fatalf("SendMsg failed: %v", err)
	}
	m.PollUpdatesChannel(ctx)

	if m.HostIsDrained("host1") {
		t.Fatal("expected host1 to not be drained while a job is running")
	}
}
