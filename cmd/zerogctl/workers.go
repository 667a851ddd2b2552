package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newWorkersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "inspect the worker fleet",
	}
	cmd.AddCommand(newWorkersListCmd())
	cmd.AddCommand(newWorkersInfoCmd())
	return cmd
}

func newWorkersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every known worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, que, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer que.Close()

			workers := m.Workers()
			ids := make([]string, 0, len(workers))
			for id := range workers {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			for _, id := range ids {
				w := workers[id]
				fmt.Printf("%s\tstate=%s\trunning=%s\tretiring=%v\n", id, w.State, w.RunningJobUUID, w.Retiring)
			}
			return nil
		},
	}
}

func newWorkersInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <workerId>",
		Short: "show detailed state for one worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, que, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer que.Close()

			w, ok := m.Workers()[args[0]]
			if !ok {
				return fmt.Errorf("unknown worker: %s", args[0])
			}
			fmt.Printf("workerId: %s\n", args[0])
			fmt.Printf("state:    %s\n", w.State)
			fmt.Printf("running:  %s\n", w.RunningJobUUID)
			fmt.Printf("retiring: %v\n", w.Retiring)
			fmt.Printf("mem:      available=%d used=%d\n", w.Mem.Available, w.Mem.Used)
			return nil
		},
	}
}
