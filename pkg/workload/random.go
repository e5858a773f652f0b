package workload

import (
	"fmt"
	"math/rand"
)

// Random generates a workload of n threads with the given number of
// steps per script. The same seed always yields the same workload, and
// since the main script is finite every generated workload ends.
func Random(seed int64, threads, steps int) *Workload {
	rng := rand.New(rand.NewSource(seed))

	names := make([]string, threads)
	for i := range names {
		names[i] = fmt.Sprintf("t%d", i+1)
	}
	other := func() string { return names[rng.Intn(len(names))] }

	w := &Workload{
		Quantum: DefaultQuantum,
		Tick:    DefaultTick,
		Threads: make(map[string][]string, threads),
	}
	for _, name := range names {
		w.Main = append(w.Main, "spawn "+name)
	}
	for i := 0; i < steps; i++ {
		switch n := rng.Intn(10); {
		case n < 6 || threads == 0:
			w.Main = append(w.Main, fmt.Sprintf("spin %d", 1+rng.Intn(4)))
		case n < 9:
			w.Main = append(w.Main, "resume "+other())
		default:
			w.Main = append(w.Main, "block "+other())
		}
	}

	for _, name := range names {
		var script []string
		for i := 0; i < steps; i++ {
			switch n := rng.Intn(20); {
			case n < 10:
				script = append(script, fmt.Sprintf("spin %d", 1+rng.Intn(4)))
			case n < 14:
				script = append(script, fmt.Sprintf("sleep %d", 10000*(1+rng.Intn(20))))
			case n < 16:
				script = append(script, "resume "+other())
			case n < 18:
				script = append(script, "block "+other())
			case n < 19:
				script = append(script, "block self")
			default:
				script = append(script, "terminate "+other())
			}
		}
		w.Threads[name] = script
	}

	if err := w.compile(); err != nil {
		panic(fmt.Sprintf("workload: generated invalid workload: %v", err))
	}
	return w
}
