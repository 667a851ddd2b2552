// Command zerogd is the zerog supervisor binary: `zerogd server` runs
// the Server supervisor-parent, execing itself in the hidden `worker`
// subcommand to become each Worker child (spec §4.5/§4.6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "zerogd",
		Short: "zerog job-processing supervisor",
	}
	root.AddCommand(newServerCmd())
	root.AddCommand(newWorkerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
