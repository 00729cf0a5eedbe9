// Package opencl implements the command queue contract on top of opencl
// devices. Kernel ids are resolved into kernels of a single program built
// from the CL sources bundled with this package.
package opencl

import (
	"fmt"
	"path"
	"runtime"

	"github.com/helios-pt/helios/tracer/device"
	cldev "github.com/helios-pt/helios/tracer/opencl/device"
)

const relativePathToWavefrontKernels = "CL/wavefront.cl"

// Queue drives one opencl command queue. Kernel execution is asynchronous;
// completion and execution errors are collected at Synchronize and enqueue
// errors stay sticky until then. The queue owns the device-side path state
// table its kernels execute against.
type Queue struct {
	dev      *cldev.Device
	capacity int
	kernels  [device.KernelCount]*cldev.Kernel
	state    *wavefrontState

	initialized bool
	err         error
}

// Create a command queue for the given opencl device with the given path
// slot capacity.
func NewQueue(dev *cldev.Device, capacity int) *Queue {
	return &Queue{dev: dev, capacity: capacity}
}

// Initialize kernel execution: build the wavefront program on the device,
// load a kernel handle for every kernel id and allocate the device-side
// path state table.
func (q *Queue) InitExecution() error {
	if q.initialized {
		return nil
	}

	_, thisFile, _, _ := runtime.Caller(0)
	programFile := path.Join(path.Dir(thisFile), relativePathToWavefrontKernels)
	if err := q.dev.Init(programFile); err != nil {
		return err
	}

	var kernel device.Kernel
	for kernel = 0; kernel < device.KernelCount; kernel++ {
		handle, err := q.dev.Kernel(kernel.String())
		if err != nil {
			q.release()
			return err
		}
		q.kernels[kernel] = handle
	}

	state, err := newWavefrontState(q.dev, q.capacity)
	if err != nil {
		q.release()
		return err
	}
	q.state = state

	q.initialized = true
	return nil
}

// Schedule kernel to execute workSize times. The path state table buffers
// the kernel signature names are bound by the queue; args supplies the
// trailing scalar parameters as int32, uint32 or float32 values. The error
// return is sticky until the next Synchronize.
func (q *Queue) Enqueue(kernel device.Kernel, workSize int, args ...interface{}) error {
	if q.err != nil {
		return q.err
	}

	if !q.initialized {
		q.err = fmt.Errorf("opencl queue (%s): enqueue before InitExecution", q.dev.Name)
		return q.err
	}

	handle := q.kernels[kernel]
	if err := handle.SetArgs(append(q.stateArgs(kernel), args...)...); err != nil {
		q.err = err
		return q.err
	}

	if err := handle.Enqueue1D(0, workSize, 0); err != nil {
		q.err = err
		return q.err
	}

	return nil
}

// Get the state table arguments leading each kernel's parameter list. The
// order mirrors the kernel signatures in the wavefront program.
func (q *Queue) stateArgs(kernel device.Kernel) []interface{} {
	s := q.state
	switch kernel {
	case device.KernelInitFromCamera, device.KernelIntersectClosest:
		return []interface{}{s.queuedKernels, s.flags, s.counters, s.bounce}
	case device.KernelIntersectShadow:
		return []interface{}{s.shadowQueuedKernels, s.shadowFlags, s.shadowCounters}
	case device.KernelIntersectSubsurface, device.KernelShadeVolume:
		return []interface{}{s.queuedKernels, s.flags, s.counters}
	case device.KernelShadeBackground:
		return []interface{}{s.queuedKernels, s.flags, s.counters, s.accumulator}
	case device.KernelShadeSurface:
		return []interface{}{s.queuedKernels, s.flags, s.counters, s.shadowQueuedKernels, s.shadowFlags, s.shadowCounters, s.bounce}
	case device.KernelShadeShadow:
		return []interface{}{s.shadowQueuedKernels, s.shadowFlags, s.shadowCounters, s.accumulator}
	}
	panic(fmt.Sprintf("opencl queue (%s): no state binding for kernel %d", q.dev.Name, kernel))
}

// Zero the device-side path state table ahead of a new dispatch batch.
func (q *Queue) ResetState() error {
	if !q.initialized {
		return fmt.Errorf("opencl queue (%s): state reset before InitExecution", q.dev.Name)
	}
	return q.state.Reset()
}

// Read back the per-kernel occupancy counters for main paths.
func (q *Queue) Counters() ([device.KernelCount]int32, error) {
	return q.state.ReadCounters()
}

// Read back the per-kernel occupancy counters for shadow paths.
func (q *Queue) ShadowCounters() ([device.KernelCount]int32, error) {
	return q.state.ReadShadowCounters()
}

// Read back the per-slot radiance accumulators; out must hold four float32
// channels per path slot.
func (q *Queue) ReadAccumulator(out []float32) error {
	return q.state.ReadAccumulator(out)
}

// Block until all enqueued work on this queue has completed. Reports the
// sticky batch error, or any failure surfaced by the device queue itself,
// and clears the sticky state.
func (q *Queue) Synchronize() error {
	err := q.dev.Finish()
	if q.err != nil {
		err = q.err
	}
	q.err = nil
	return err
}

// Release the state table, kernel handles and shut down the underlying
// device.
func (q *Queue) Close() {
	q.release()
	q.dev.Close()
}

func (q *Queue) release() {
	if q.state != nil {
		q.state.Release()
		q.state = nil
	}
	for i, kernel := range q.kernels {
		if kernel != nil {
			kernel.Release()
			q.kernels[i] = nil
		}
	}
	q.initialized = false
}
