package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiptapinc/zerog-go/internal/zerog/bootstrap"
	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/server"
	"github.com/tiptapinc/zerog-go/pkg/config"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

func newServerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "run the Server supervisor-parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to zerogd.yml (defaults built in if omitted)")
	return cmd
}

func runServer(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	logger.SetLevel(level)
	logger.SetGlobalMode("server")

	log := logger.WithField("component", "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

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

	execPath := cfg.Server.WorkerExecPath
	if execPath == "" {
		execPath, err = os.Executable()
		if err != nil {
			return fmt.Errorf("resolving self path: %w", err)
		}
	}

	workerID := domain.MakeWorkerID(domain.WorkerType, cfg.Server.Host, cfg.Server.Name, os.Getpid())
	srv := server.New(workerID, store, que, registry, cfg.JobTube(), execPath, nil)

	log.Info("starting server", "workerId", workerID)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
