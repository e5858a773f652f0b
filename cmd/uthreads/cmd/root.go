package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uthreads",
	Short: "user-level thread runtime tooling",
	Long: `uthreads runs scripted workloads on the user-level thread runtime,
records and replays their scheduling traces, and instruments Go source
so that it runs on the runtime.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
