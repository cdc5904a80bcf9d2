package main

import (
	"context"
	"fmt"
	"time"

	op "github.com/seoyhaein/op-go"
	"github.com/seoyhaein/op-go/debugonly"
)

// HeavyTask simulates a CPU-and-IO-intensive workload for queue load testing.
type HeavyTask struct {
	Iterations int
	Sleep      time.Duration
}

// Main executes a CPU-bound loop followed by a context-aware sleep to simulate
// network / disk I/O latency. Cancellation via ctx is respected during sleep.
func (h *HeavyTask) Main(ctx context.Context, o *op.Operation) {
	// CPU load simulation.
	sum := 0
	for i := 0; i < h.Iterations; i++ { //nolint:intrange
		sum += i*i + i%3
	}
	_ = sum // prevent compiler optimisation

	// I/O latency simulation — honour context cancellation.
	select {
	case <-time.After(h.Sleep):
	case <-ctx.Done():
	}
	o.Finish()
}

func main() {
	RunHeavyQueue()
}

// RunHeavyQueue builds and drains a diamond-shaped graph of HeavyTask
// operations for load testing.
func RunHeavyQueue() {
	q := op.NewQueueWithOptions(op.WithWorkerPool(8))
	defer q.Shutdown()

	task := &HeavyTask{
		Iterations: 10,
		Sleep:      2 * time.Millisecond,
	}

	ids := []string{"A", "B1", "B2", "C", "D1", "D2", "E"}
	ops := make(map[string]*op.Operation, len(ids))
	batch := make([]*op.Operation, 0, len(ids))
	for _, id := range ids {
		o := op.NewOperation(id, task)
		ops[id] = o
		batch = append(batch, o)
	}

	edges := []struct{ from, to string }{
		{"A", "B1"}, {"A", "B2"},
		{"B1", "C"}, {"B2", "C"},
		{"C", "D1"}, {"C", "D2"},
		{"D1", "E"}, {"D2", "E"},
	}
	for _, e := range edges {
		if err := q.AddDependency(ops[e.to], ops[e.from]); err != nil {
			panic(fmt.Sprintf("failed to add dependency %s -> %s: %v", e.from, e.to, err))
		}
	}

	ctx := context.Background()
	start := time.Now()
	if err := q.Submit(ctx, batch, true); err != nil {
		panic(fmt.Sprintf("Submit failed: %v", err))
	}

	fmt.Printf("debugger tag: %v\n", debugonly.Enabled())
	fmt.Printf("Heavy queue run complete in %v. Progress: %.2f\n",
		time.Since(start).Round(time.Millisecond), q.Progress())
}
