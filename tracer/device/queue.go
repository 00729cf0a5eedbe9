package device

// Queue abstracts one accelerator command queue. A queue is driven by
// exactly one worker thread at a time. The order in which kernels are
// enqueued defines the order their dispatches begin executing; the lanes
// inside a single dispatch run in parallel with no ordering guarantee.
type Queue interface {
	// Initialize kernel execution on this queue. Loads any shared
	// read-only state the kernels require. Must be called once after
	// cross-device data synchronization has finished and before the
	// first Enqueue. Failures surface through the Enqueue/Synchronize
	// return values.
	InitExecution() error

	// Schedule kernel to execute workSize times. Arguments are either
	// scalar values or Buffer handles; handles are passed by reference
	// so no host/device copies occur at enqueue time.
	//
	// A non-nil return indicates that this or a previously enqueued,
	// not yet synchronized kernel failed. The error is sticky: every
	// subsequent Enqueue returns it until the next Synchronize.
	Enqueue(kernel Kernel, workSize int, args ...interface{}) error

	// Block until all enqueued work on this queue has completed. Returns
	// the sticky error if any kernel in the batch failed and clears it.
	Synchronize() error
}

// Buffer is an opaque device memory handle. Queue implementations resolve
// it to an actual device address at dispatch time.
type Buffer interface {
	// A name identifying the buffer in diagnostics.
	Name() string

	// Allocated size in bytes.
	Size() int

	// Release the device allocation.
	Release()
}
