package cmd

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/amirkhaki/uthreads/pkg/uthread"
	"github.com/amirkhaki/uthreads/pkg/workload"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [workload.yaml]",
	Short: "run a workload on the thread runtime",
	Long: `Run a workload file, or a generated one when no file is given.
With --simulated every spin step advances a fake clock, which makes the
run (and its trace) fully deterministic.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := selectWorkload(args)
		if err != nil {
			return err
		}
		if savePath != "" {
			data, err := w.Marshal()
			if err != nil {
				return err
			}
			if err := os.WriteFile(savePath, data, 0o644); err != nil {
				return fmt.Errorf("failed to save workload: %w", err)
			}
		}

		opts := workload.Options{Out: cmd.OutOrStdout(), Exit: os.Exit}
		if quiet {
			opts.Out = nil
		}
		if simulated {
			opts.Clock = clockwork.NewFakeClock()
		}
		if tracePath != "" {
			opts.Observers = append(opts.Observers, uthread.NewRecordObserver(tracePath))
		}
		return workload.Run(w, opts)
	},
}

var (
	seed      int64
	threads   int
	steps     int
	quantum   int
	simulated bool
	quiet     bool
	tracePath string
	savePath  string
)

// selectWorkload loads the workload named in args or generates one from
// the seed flags.
func selectWorkload(args []string) (*workload.Workload, error) {
	var w *workload.Workload
	if len(args) == 1 {
		var err error
		if w, err = workload.Load(args[0]); err != nil {
			return nil, err
		}
	} else {
		if threads < 0 || steps < 0 {
			return nil, fmt.Errorf("threads and steps should not be negative")
		}
		w = workload.Random(seed, threads, steps)
	}
	if quantum != 0 {
		w.Quantum = quantum
	}
	return w, nil
}

func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&seed, "seed", "s", 1,
		"seed of the generated workload")
	cmd.Flags().IntVarP(&threads, "threads", "n", 4,
		"number of threads of the generated workload")
	cmd.Flags().IntVar(&steps, "steps", 20,
		"actions per script of the generated workload")
	cmd.Flags().IntVarP(&quantum, "quantum", "q", 0,
		"override the workload quantum (µs)")
}

func init() {
	rootCmd.AddCommand(runCmd)

	addWorkloadFlags(runCmd)
	runCmd.Flags().BoolVar(&simulated, "simulated", false,
		"drive the runtime with a simulated clock")
	runCmd.Flags().BoolVar(&quiet, "quiet", false,
		"do not print executed actions")
	runCmd.Flags().StringVarP(&tracePath, "trace", "t", "",
		"record scheduling events to this file")
	runCmd.Flags().StringVar(&savePath, "save", "",
		"write the workload as YAML to this file before running it")
}
