package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tiptapinc/zerog-go/internal/zerog/bootstrap"
	"github.com/tiptapinc/zerog-go/internal/zerog/worker"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// These must match internal/zerog/server.spawnWorker's ExtraFiles order:
// fd 3 is this process's read end of the parent->child pipe, fd 4 its
// write end of the child->parent pipe.
const (
	parentReadFD  = 3
	parentWriteFD = 4
)

func newWorkerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "run the Worker supervisor-child (normally execed by the Server, not invoked directly)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to zerogd.yml (defaults built in if omitted)")
	return cmd
}

func runWorker(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	logger.SetLevel(level)
	logger.SetGlobalMode("worker")

	jobTube := os.Getenv("ZEROG_JOB_TUBE")
	if jobTube == "" {
		jobTube = cfg.JobTube()
	}
	parentPID := 0
	if v := os.Getenv("ZEROG_PARENT_PID"); v != "" {
		parentPID, _ = strconv.Atoi(v)
	}

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer store.Close()

	que, err := bootstrap.OpenQueue(cfg)
	if err != nil {
		return fmt.Errorf("opening queue: %w", err)
	}
	defer que.Close()

	registry := bootstrap.NewRegistry()

	readEnd := os.NewFile(uintptr(parentReadFD), "zerog-parent-read")
	writeEnd := os.NewFile(uintptr(parentWriteFD), "zerog-parent-write")
	if readEnd == nil || writeEnd == nil {
		return fmt.Errorf("worker: parent pipe file descriptors %d/%d not inherited", parentReadFD, parentWriteFD)
	}
	codec := worker.NewPipeCodec(readEnd, writeEnd)

	w := worker.New(store, que, registry, jobTube, codec, parentPID)

	logger.WithField("component", "main").Info("starting worker", "jobTube", jobTube, "parentPid", parentPID)
	return w.Run(ctx)
}
