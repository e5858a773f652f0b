package cmd

import (
	"bufio"
	"fmt"
	"go/printer"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/uthreads/pkg/instrument"
)

// toolexecCmd represents the toolexec command
var toolexecCmd = &cobra.Command{
	Use:   "toolexec [--quantum=N] TOOL ARGS...",
	Short: "go build -toolexec 'uthreads toolexec'",
	Long: `Instrument compile units on the fly during go build.

Only packages whose importcfg already provides the thread runtime are
instrumented, so every package to run on the runtime must import it (a
blank import of github.com/amirkhaki/uthreads/pkg/uthread is enough).
With --quantum, main.main initializes the runtime first.`,
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(1),
	Run:                handleToolExec,
}

// handleToolExec intercepts go tool commands when used with -toolexec
func handleToolExec(cmd *cobra.Command, args []string) {
	quantum, args, err := parseToolexecArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uthreads: %v\n", err)
		os.Exit(2)
	}
	tool, args := args[0], args[1:]

	// Only compile commands are rewritten
	if !strings.HasSuffix(strings.TrimSuffix(filepath.Base(tool), ".exe"), "compile") {
		runTool(tool, args)
		return
	}

	unit := parseCompileArgs(args)
	runtimePath := instrument.DefaultConfig().BaseRuntimeAddress
	if len(unit.goFiles) == 0 || unit.importcfg == "" || ownPackage(unit.pkgPath, runtimePath) {
		runTool(tool, args)
		return
	}
	ok, err := importcfgProvides(unit.importcfg, runtimePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uthreads: failed to read importcfg: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		runTool(tool, args)
		return
	}

	tempDir, err := os.MkdirTemp("", "uthreads_*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "uthreads: failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	fileMap, err := instrumentFilesToDir(unit.goFiles, tempDir, quantum)
	if err != nil {
		os.RemoveAll(tempDir)
		fmt.Fprintf(os.Stderr, "uthreads: failed to instrument: %v\n", err)
		os.Exit(1)
	}

	code := execTool(tool, rewriteArgs(args, fileMap))
	os.RemoveAll(tempDir)
	os.Exit(code)
}

// parseToolexecArgs splits leading uthreads options from the tool command.
func parseToolexecArgs(args []string) (int, []string, error) {
	quantum := 0
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		name, value, _ := strings.Cut(strings.TrimPrefix(args[0], "--"), "=")
		if name != "quantum" {
			return 0, nil, fmt.Errorf("unknown toolexec option %q", args[0])
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, nil, fmt.Errorf("invalid quantum %q", value)
		}
		quantum = n
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("missing tool command")
	}
	return quantum, args, nil
}

// compileUnit is what toolexec needs to know about one compile command.
type compileUnit struct {
	pkgPath   string
	importcfg string
	goFiles   []string
}

func parseCompileArgs(args []string) compileUnit {
	var unit compileUnit
	goroot := os.Getenv("GOROOT")
	for i, arg := range args {
		switch {
		case arg == "-p" && i+1 < len(args):
			unit.pkgPath = args[i+1]
		case arg == "-importcfg" && i+1 < len(args):
			unit.importcfg = os.ExpandEnv(args[i+1])
		case strings.HasSuffix(arg, ".go") && !strings.HasPrefix(arg, "-"):
			// Skip files in GOROOT and cgo-generated files
			if goroot != "" && strings.HasPrefix(filepath.Clean(arg), filepath.Clean(goroot)) {
				continue
			}
			if strings.HasPrefix(filepath.Base(arg), "_cgo") {
				continue
			}
			unit.goFiles = append(unit.goFiles, arg)
		}
	}
	return unit
}

// ownPackage reports whether pkgPath belongs to the module that provides
// the runtime, which is never instrumented.
func ownPackage(pkgPath, runtimePath string) bool {
	module := strings.TrimSuffix(runtimePath, "/pkg/uthread")
	return pkgPath == module || strings.HasPrefix(pkgPath, module+"/")
}

// importcfgProvides reports whether the importcfg maps pkgPath to an archive.
func importcfgProvides(importcfg, pkgPath string) (bool, error) {
	f, err := os.Open(importcfg)
	if err != nil {
		return false, err
	}
	defer f.Close()

	prefix := "packagefile " + pkgPath + "="
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.HasPrefix(strings.TrimSpace(sc.Text()), prefix) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// instrumentFilesToDir instruments the files of one package together and
// writes them to targetDir. It returns a map of original to instrumented
// paths.
func instrumentFilesToDir(goFiles []string, targetDir string, quantum int) (map[string]string, error) {
	cfg := instrument.DefaultConfig()
	cfg.InitQuantum = quantum
	instr := instrument.NewInstrumenter(cfg)
	fset := token.NewFileSet()

	files, err := instr.InstrumentFiles(fset, goFiles)
	if err != nil {
		return nil, err
	}

	fileMap := make(map[string]string, len(goFiles))
	for i, origFile := range goFiles {
		outputPath := filepath.Join(targetDir, filepath.Base(origFile))
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", outputPath, err)
		}
		err = printer.Fprint(f, fset, files[i])
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		fileMap[origFile] = outputPath
	}
	return fileMap, nil
}

// rewriteArgs replaces the original source files by their instrumented
// copies.
func rewriteArgs(args []string, fileMap map[string]string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if instrumented, ok := fileMap[arg]; ok {
			arg = instrumented
		}
		out[i] = arg
	}
	return out
}

// execTool runs a tool with the terminal attached and returns its exit
// status.
func execTool(tool string, args []string) int {
	cmd := exec.Command(tool, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "uthreads: %v\n", err)
		return 1
	}
	return 0
}

// runTool passes a command through unchanged.
func runTool(tool string, args []string) {
	if code := execTool(tool, args); code != 0 {
		os.Exit(code)
	}
}

func init() {
	rootCmd.AddCommand(toolexecCmd)
}
