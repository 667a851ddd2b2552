package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/bootstrap"
	"github.com/tiptapinc/zerog-go/internal/zerog/mgmt"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/pkg/config"
)

// infoReplyWait bounds how long a one-shot CLI invocation waits for
// requestInfo replies to land on the updates tube, since sending the
// request and polling for its answer happen in the same short-lived
// process rather than a long-running manager loop.
const infoReplyWait = 2 * time.Second

// openManager opens the configured queue backend and returns a Manager
// caught up on the fleet's current state: one UpdateWorkers round-trip
// (sends requestInfo to every known worker) followed by repeated
// PollUpdatesChannel passes for infoReplyWait to collect the replies.
func openManager(ctx context.Context) (*mgmt.Manager, queue.Queue, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	que, err := bootstrap.OpenQueue(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening queue: %w", err)
	}

	m := mgmt.NewManager(que, "updates")
	if err := m.Attach(ctx); err != nil {
		que.Close()
		return nil, nil, fmt.Errorf("attaching updates channel: %w", err)
	}
	if err := m.UpdateWorkers(ctx); err != nil {
		que.Close()
		return nil, nil, fmt.Errorf("updating worker set: %w", err)
	}

	deadline := time.Now().Add(infoReplyWait)
	for time.Now().Before(deadline) {
		m.PollUpdatesChannel(ctx)
		time.Sleep(50 * time.Millisecond)
	}

	return m, que, nil
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}
