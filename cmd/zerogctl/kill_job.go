package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newKillJobCmd() *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "kill-job <uuid>",
		Short: "kill the job currently running on a worker, if its uuid matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workerID == "" {
				return fmt.Errorf("--worker is required")
			}
			uuid := args[0]

			ctx := context.Background()
			m, que, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer que.Close()

			if err := m.KillJob(ctx, workerID, uuid); err != nil {
				return fmt.Errorf("killing job %s on %s: %w", uuid, workerID, err)
			}
			fmt.Printf("kill sent for %s on %s\n", uuid, workerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&workerID, "worker", "", "worker id the job is expected to be running on")
	return cmd
}
