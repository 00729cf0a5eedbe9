package native

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/helios-pt/helios/tracer/device"
)

// Dispatches below this size are not worth fanning out to worker
// goroutines.
const minLanesPerWorker = 64

// KernelFunc executes one lane of a kernel dispatch. Lanes of the same
// dispatch may run concurrently and in any order.
type KernelFunc func(lane int, args []interface{}) error

// Queue implements the command queue contract on host memory. Enqueued
// kernels execute immediately across workSize lanes; the first lane failure
// becomes the sticky batch error reported until the next Synchronize.
type Queue struct {
	name        string
	table       [device.KernelCount]KernelFunc
	initialized bool

	// Sticky error for the current dispatch batch.
	err error
}

// Get queue name.
func (q *Queue) Name() string {
	return q.name
}

// Register an implementation for the given kernel id. Enqueueing a kernel
// with no registered implementation is a dispatch failure.
func (q *Queue) Register(kernel device.Kernel, fn KernelFunc) {
	q.table[kernel] = fn
}

// Initialize kernel execution on this queue.
func (q *Queue) InitExecution() error {
	q.initialized = true
	return nil
}

// Schedule kernel to execute workSize times. The error return is sticky
// until the next Synchronize.
func (q *Queue) Enqueue(kernel device.Kernel, workSize int, args ...interface{}) error {
	if q.err != nil {
		return q.err
	}

	if !q.initialized {
		q.err = fmt.Errorf("native queue (%s): enqueue before InitExecution", q.name)
		return q.err
	}

	fn := q.table[kernel]
	if fn == nil {
		q.err = fmt.Errorf("native queue (%s): no implementation registered for kernel %s", q.name, kernel)
		return q.err
	}

	if err := q.dispatch(fn, workSize, args); err != nil {
		q.err = fmt.Errorf("native queue (%s): kernel %s failed: %v", q.name, kernel, err)
		return q.err
	}

	return nil
}

// Block until all enqueued work has completed. Reports and clears the
// sticky batch error.
func (q *Queue) Synchronize() error {
	err := q.err
	q.err = nil
	return err
}

// Run a dispatch across workSize lanes. Large dispatches are split between
// worker goroutines; lanes observe no ordering guarantees either way.
func (q *Queue) dispatch(fn KernelFunc, workSize int, args []interface{}) error {
	if workSize <= 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if max := workSize / minLanesPerWorker; numWorkers > max {
		numWorkers = max
	}

	if numWorkers <= 1 {
		for lane := 0; lane < workSize; lane++ {
			if err := fn(lane, args); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	lanesPerWorker := (workSize + numWorkers - 1) / numWorkers
	for start := 0; start < workSize; start += lanesPerWorker {
		end := start + lanesPerWorker
		if end > workSize {
			end = workSize
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for lane := start; lane < end; lane++ {
				if err := fn(lane, args); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
			}
		}(start, end)
	}
	wg.Wait()

	return firstErr
}
