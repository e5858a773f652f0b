package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/amirkhaki/uthreads/pkg/uthread"
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace TRACE",
	Short: "summarize a recorded trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trace, err := uthread.LoadTrace(args[0])
		if err != nil {
			return err
		}

		out := io.Writer(colorable.NewColorableStdout())
		color := !noColor && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
		printSummary(out, trace, color)
		if showOrder {
			fmt.Fprintf(out, "\ndispatch order: %v\n", uthread.DispatchOrder(trace))
		}
		return nil
	},
}

var summaryKinds = []uthread.Kind{
	uthread.KindDispatch,
	uthread.KindPreempt,
	uthread.KindBlock,
	uthread.KindResume,
	uthread.KindSleep,
	uthread.KindWake,
	uthread.KindTerminate,
}

const (
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func printSummary(w io.Writer, trace []uthread.Event, color bool) {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + ansiReset
	}

	header := []string{"tid"}
	for _, k := range summaryKinds {
		header = append(header, k.String())
	}
	rows := [][]string{header}
	var live []bool
	for _, s := range uthread.Summarize(trace) {
		row := []string{strconv.Itoa(s.Tid)}
		for _, k := range summaryKinds {
			row = append(row, strconv.Itoa(s.Counts[k]))
		}
		rows = append(rows, row)
		live = append(live, s.Counts[uthread.KindTerminate] == 0)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	// Cells are padded before they are painted so escape codes never
	// count toward a column's width.
	for r, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			pad := ""
			if i < len(row)-1 {
				pad = strings.Repeat(" ", widths[i]-len(cell))
			}
			switch {
			case r == 0:
				cell = paint(ansiBold, cell)
			case i == 0 && live[r-1]:
				cell = paint(ansiRed, cell)
			}
			line.WriteString(cell + pad)
		}
		fmt.Fprintln(w, line.String())
	}

	total := 0
	if len(trace) > 0 {
		total = trace[len(trace)-1].Quantum
	}
	fmt.Fprintf(w, "%d events, %d quanta\n", len(trace), total)
}

var (
	showOrder bool
	noColor   bool
)

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().BoolVar(&showOrder, "order", false,
		"print the dispatch order")
	traceCmd.Flags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
}
