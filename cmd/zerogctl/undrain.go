package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newUndrainCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "undrain",
		Short: "resume handing new jobs to every worker on a host",
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

			if err := m.UndrainHost(ctx, host); err != nil {
				return fmt.Errorf("undraining %s: %w", host, err)
			}
			fmt.Printf("undrain sent to %s\n", host)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host whose workers should resume accepting new jobs")
	return cmd
}
