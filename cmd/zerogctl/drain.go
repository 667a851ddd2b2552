package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDrainCmd() *cobra.Command {
	var host string
	var retire bool

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "stop handing new jobs to every worker on a host, letting in-flight jobs finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				return fmt.Errorf("--host is required")
			}

			ctx := context.Background()
			m, que, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer que.Close()

			if err := m.DrainHost(ctx, host, retire); err != nil {
				return fmt.Errorf("draining %s: %w", host, err)
			}
			fmt.Printf("drain sent to %s\n", host)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host whose workers should stop accepting new jobs")
	cmd.Flags().BoolVar(&retire, "retire", false, "drain permanently; undrain will not reverse it")
	return cmd
}
