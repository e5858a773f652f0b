// Package workload describes scripted thread programs and runs them on a
// uthread runtime.
//
// A workload is a YAML document:
//
//	quantum: 100000     # µs
//	tick: 25000         # µs of work per spin step
//	main:
//	  - spawn worker
//	  - spin 8
//	threads:
//	  worker:
//	    - spin 3
//	    - sleep 50000
//
// Every script line is one action. References to threads are "self",
// "main", a thread name (its most recently spawned instance) or a numeric
// id.
package workload

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/shlex"
	"gopkg.in/yaml.v2"
)

// Defaults applied by Parse.
const (
	DefaultQuantum = 100000
	DefaultTick    = 25000
)

// Workload is a set of thread scripts.
type Workload struct {
	Quantum    int                 `yaml:"quantum"`
	Tick       int                 `yaml:"tick"`
	MaxThreads int                 `yaml:"max_threads,omitempty"`
	Main       []string            `yaml:"main"`
	Threads    map[string][]string `yaml:"threads,omitempty"`

	main    []Action
	threads map[string][]Action
}

// Op is a script operation.
type Op string

const (
	OpSpin      Op = "spin"
	OpSleep     Op = "sleep"
	OpBlock     Op = "block"
	OpResume    Op = "resume"
	OpTerminate Op = "terminate"
	OpSpawn     Op = "spawn"
	OpExit      Op = "exit"
)

// Action is one parsed script line.
type Action struct {
	Op  Op
	N   int    // spin steps or sleep µs
	Ref string // thread reference or, for spawn, thread name
}

func (a Action) String() string {
	switch a.Op {
	case OpSpin, OpSleep:
		return fmt.Sprintf("%s %d", a.Op, a.N)
	case OpExit:
		return string(a.Op)
	default:
		return fmt.Sprintf("%s %s", a.Op, a.Ref)
	}
}

// ParseAction parses a single script line such as "sleep 50000".
func ParseAction(line string) (Action, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return Action{}, fmt.Errorf("action %q: %w", line, err)
	}
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("empty action")
	}

	a := Action{Op: Op(fields[0])}
	args := fields[1:]
	switch a.Op {
	case OpSpin, OpSleep:
		if len(args) != 1 {
			return Action{}, fmt.Errorf("action %q: %s takes one number", line, a.Op)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return Action{}, fmt.Errorf("action %q: invalid count %q", line, args[0])
		}
		a.N = n
	case OpBlock, OpResume, OpTerminate, OpSpawn:
		if len(args) != 1 {
			return Action{}, fmt.Errorf("action %q: %s takes one thread", line, a.Op)
		}
		a.Ref = args[0]
	case OpExit:
		if len(args) != 0 {
			return Action{}, fmt.Errorf("action %q: exit takes no arguments", line)
		}
	default:
		return Action{}, fmt.Errorf("action %q: unknown operation %q", line, fields[0])
	}
	return a, nil
}

// Parse decodes and validates a YAML workload.
func Parse(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.UnmarshalStrict(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode workload: %w", err)
	}
	if err := w.compile(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Load reads a workload file.
func Load(filename string) (*Workload, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the workload as YAML.
func (w *Workload) Marshal() ([]byte, error) {
	return yaml.Marshal(w)
}

// compile applies defaults and parses every script.
func (w *Workload) compile() error {
	if w.Quantum == 0 {
		w.Quantum = DefaultQuantum
	}
	if w.Tick == 0 {
		w.Tick = DefaultTick
	}
	if w.Tick < 0 {
		return fmt.Errorf("tick should be positive, got %d", w.Tick)
	}

	var errs error
	w.main, errs = w.compileScript("main", w.Main)
	w.threads = make(map[string][]Action, len(w.Threads))
	for name, lines := range w.Threads {
		if name == "self" || name == "main" {
			errs = errors.Join(errs, fmt.Errorf("thread name %q is reserved", name))
			continue
		}
		if _, err := strconv.Atoi(name); err == nil {
			errs = errors.Join(errs, fmt.Errorf("thread name %q must not be a number", name))
			continue
		}
		actions, err := w.compileScript(name, lines)
		errs = errors.Join(errs, err)
		w.threads[name] = actions
	}
	return errs
}

func (w *Workload) compileScript(name string, lines []string) ([]Action, error) {
	var errs error
	actions := make([]Action, 0, len(lines))
	for i, line := range lines {
		a, err := ParseAction(line)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s[%d]: %w", name, i, err))
			continue
		}
		if a.Op == OpSpawn {
			if _, ok := w.Threads[a.Ref]; !ok {
				errs = errors.Join(errs, fmt.Errorf("%s[%d]: spawn of undefined thread %q", name, i, a.Ref))
				continue
			}
		}
		actions = append(actions, a)
	}
	return actions, errs
}
