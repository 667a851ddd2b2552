// Command zerogctl is the fleet operator CLI: each subcommand is a thin
// wrapper around one mgmt.Manager call (spec §4.8).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "zerogctl",
		Short: "operate a zerog worker fleet",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to zerogd.yml describing the queue backend")

	root.AddCommand(newWorkersCmd())
	root.AddCommand(newDrainCmd())
	root.AddCommand(newUndrainCmd())
	root.AddCommand(newKillJobCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
