package uthread

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LoadTrace reads a trace from a JSON-lines file.
func LoadTrace(filename string) ([]Event, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	var trace []Event
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		trace = append(trace, e)
	}
	return trace, nil
}

// SaveTrace writes a trace to a JSON-lines file.
func SaveTrace(filename string, trace []Event) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range trace {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return w.Flush()
}

// DispatchOrder returns the thread ids in the order they were dispatched.
func DispatchOrder(trace []Event) []int {
	var order []int
	for _, e := range trace {
		if e.Kind == KindDispatch {
			order = append(order, e.Tid)
		}
	}
	return order
}

// ThreadSummary aggregates the events of one thread.
type ThreadSummary struct {
	Tid    int
	Counts map[Kind]int
}

// Summarize groups events by thread id, ordered by id.
func Summarize(trace []Event) []ThreadSummary {
	grouped := make(map[int]map[Kind]int)
	for _, e := range trace {
		if grouped[e.Tid] == nil {
			grouped[e.Tid] = make(map[Kind]int)
		}
		grouped[e.Tid][e.Kind]++
	}

	out := make([]ThreadSummary, 0, len(grouped))
	for tid, counts := range grouped {
		out = append(out, ThreadSummary{Tid: tid, Counts: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tid < out[j].Tid })
	return out
}
