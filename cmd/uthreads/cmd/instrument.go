package cmd

import (
	"errors"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/uthreads/pkg/instrument"
)

// instrumentCmd represents the instrument command
var instrumentCmd = &cobra.Command{
	Use:   "instrument",
	Short: "instrument given files",
	Long: `Rewrite Go files to run on the thread runtime: loops get preemption
checkpoints and go statements spawn threads. With --quantum, main.main
initializes the runtime first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(inputs) == 0 {
			return nil
		}
		cfg := instrument.DefaultConfig()
		cfg.InitQuantum = initQuantum
		cfg.FuncEntry = funcEntry
		instr := instrument.NewInstrumenter(cfg)
		fset := token.NewFileSet()

		files, err := instr.InstrumentFiles(fset, inputs)
		if err != nil {
			return err
		}
		var jerr error
		for i := range inputs {
			f, s := files[i], inputs[i]
			dir, filename := filepath.Split(s)
			ext := filepath.Ext(filename)
			filename = filename[:len(filename)-len(ext)] + postfix + ext
			output := dir + filename
			if _, err := os.Stat(output); errors.Is(err, os.ErrNotExist) || force {
				file, err := os.Create(output)
				if err != nil {
					jerr = errors.Join(jerr, err)
					continue
				}
				jerr = errors.Join(jerr, printer.Fprint(file, fset, f), file.Close())
			}
		}
		return jerr
	},
}

var (
	inputs      []string
	postfix     string
	force       bool
	initQuantum int
	funcEntry   bool
)

func init() {
	rootCmd.AddCommand(instrumentCmd)

	instrumentCmd.Flags().StringArrayVarP(&inputs, "input", "i",
		[]string{}, "path of input files")
	instrumentCmd.Flags().StringVarP(&postfix, "postfix", "p", "_uthreads",
		"postfix of generated files (alongside input files)")
	instrumentCmd.Flags().BoolVarP(&force, "force", "f", false,
		"force override files")
	instrumentCmd.Flags().IntVar(&initQuantum, "quantum", 0,
		"initialize the runtime in main.main with this quantum (µs)")
	instrumentCmd.Flags().BoolVar(&funcEntry, "func-entry", false,
		"also checkpoint at the top of every function")
}
