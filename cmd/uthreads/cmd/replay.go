package cmd

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/amirkhaki/uthreads/pkg/uthread"
	"github.com/amirkhaki/uthreads/pkg/workload"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay TRACE [workload.yaml]",
	Short: "check a simulated run against a recorded trace",
	Long: `Run the workload on a simulated clock and compare every scheduling
event with the recorded trace. Exits with status 1 on the first
divergence.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		replayer, err := uthread.NewReplayObserver(args[0])
		if err != nil {
			return err
		}
		w, err := selectWorkload(args[1:])
		if err != nil {
			return err
		}

		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
		return workload.Run(w, workload.Options{
			Clock:     clockwork.NewFakeClock(),
			Observers: []uthread.Observer{replayer},
			Exit: func(code int) {
				if err := replayer.Err(); err != nil {
					fmt.Fprintf(stderr, "uthreads: replay diverged: %v\n", err)
					os.Exit(1)
				}
				fmt.Fprintf(stdout, "trace %s replayed\n", args[0])
				os.Exit(code)
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addWorkloadFlags(replayCmd)
}
