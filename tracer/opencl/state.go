package opencl

import (
	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/helios-pt/helios/tracer/device"
	cldev "github.com/helios-pt/helios/tracer/opencl/device"
)

const (
	int32Bytes = 4

	// One float4 accumulator per path slot.
	accumulatorChannels = 4
)

// wavefrontState is the device-side path state table one queue's kernels
// execute against: the queued-kernel bitmask, liveness flag and bounce depth
// per slot, a radiance accumulator per slot and the per-kernel occupancy
// counters, with an independent bitmask/flag/counter set for shadow paths.
// The kernels update it with device atomics; the host reads the counters
// back after each synchronized batch to pick the next dispatch.
type wavefrontState struct {
	capacity int

	queuedKernels *cldev.Buffer
	flags         *cldev.Buffer
	counters      *cldev.Buffer

	shadowQueuedKernels *cldev.Buffer
	shadowFlags         *cldev.Buffer
	shadowCounters      *cldev.Buffer

	bounce      *cldev.Buffer
	accumulator *cldev.Buffer
}

// Allocate the state table buffers on the given device. The table starts
// out zeroed; every slot is unoccupied.
func newWavefrontState(dev *cldev.Device, capacity int) (*wavefrontState, error) {
	s := &wavefrontState{
		capacity:            capacity,
		queuedKernels:       dev.Buffer("queuedKernels"),
		flags:               dev.Buffer("flags"),
		counters:            dev.Buffer("counters"),
		shadowQueuedKernels: dev.Buffer("shadowQueuedKernels"),
		shadowFlags:         dev.Buffer("shadowFlags"),
		shadowCounters:      dev.Buffer("shadowCounters"),
		bounce:              dev.Buffer("bounce"),
		accumulator:         dev.Buffer("accumulator"),
	}

	sizes := []struct {
		buf   *cldev.Buffer
		bytes int
	}{
		{s.queuedKernels, capacity * int32Bytes},
		{s.flags, capacity * int32Bytes},
		{s.counters, int(device.KernelCount) * int32Bytes},
		{s.shadowQueuedKernels, capacity * int32Bytes},
		{s.shadowFlags, capacity * int32Bytes},
		{s.shadowCounters, int(device.KernelCount) * int32Bytes},
		{s.bounce, capacity * int32Bytes},
		{s.accumulator, capacity * accumulatorChannels * int32Bytes},
	}
	for _, alloc := range sizes {
		if err := alloc.buf.Allocate(alloc.bytes, cl.MEM_READ_WRITE); err != nil {
			s.Release()
			return nil, err
		}
	}

	if err := s.Reset(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// Get the path slot capacity of the state table.
func (s *wavefrontState) Capacity() int {
	return s.capacity
}

// Zero every slot bitmask, flag, counter and accumulator ahead of a new
// dispatch batch.
func (s *wavefrontState) Reset() error {
	zeros := make([]int32, s.capacity*accumulatorChannels)
	for _, buf := range []*cldev.Buffer{
		s.queuedKernels, s.flags, s.counters,
		s.shadowQueuedKernels, s.shadowFlags, s.shadowCounters,
		s.bounce, s.accumulator,
	} {
		if err := buf.WriteData(zeros[:buf.Size()/int32Bytes], 0); err != nil {
			return err
		}
	}
	return nil
}

// Read back the per-kernel occupancy counters for main paths.
func (s *wavefrontState) ReadCounters() ([device.KernelCount]int32, error) {
	return readCounterBuffer(s.counters)
}

// Read back the per-kernel occupancy counters for shadow paths.
func (s *wavefrontState) ReadShadowCounters() ([device.KernelCount]int32, error) {
	return readCounterBuffer(s.shadowCounters)
}

func readCounterBuffer(buf *cldev.Buffer) ([device.KernelCount]int32, error) {
	var counters [device.KernelCount]int32
	if err := buf.ReadData(0, 0, counters[:]); err != nil {
		return counters, err
	}
	return counters, nil
}

// Read back the per-slot radiance accumulators. The destination must hold
// four float32 channels per slot.
func (s *wavefrontState) ReadAccumulator(out []float32) error {
	return s.accumulator.ReadData(0, 0, out)
}

// Read back the per-slot liveness flags.
func (s *wavefrontState) ReadFlags(out []int32) error {
	return s.flags.ReadData(0, 0, out)
}

// Release every device allocation held by the state table.
func (s *wavefrontState) Release() {
	for _, buf := range []*cldev.Buffer{
		s.queuedKernels, s.flags, s.counters,
		s.shadowQueuedKernels, s.shadowFlags, s.shadowCounters,
		s.bounce, s.accumulator,
	} {
		if buf != nil {
			buf.Release()
		}
	}
}
