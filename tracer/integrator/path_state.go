package integrator

import (
	"fmt"
	"sync/atomic"

	"github.com/helios-pt/helios/tracer/device"
)

// PathTransitions is the kernel continuation protocol for the paths held in
// one queue's state table. Every kernel invocation must call exactly one of
// PathInit, PathNext or PathTerminate for its slot, exactly once; shadow
// kernels use the isomorphic shadow variants. The implementation is picked
// once per render session: atomically counted for wavefront execution,
// no-op for megakernel execution.
type PathTransitions interface {
	// Queue a brand new (or reseeded) path for the next kernel.
	PathInit(slot int, next device.Kernel)

	// Move a path from its current kernel to the next one.
	PathNext(slot int, current, next device.Kernel)

	// Terminate a path. No further transitions are permitted for the
	// slot until it is reseeded.
	PathTerminate(slot int, current device.Kernel)

	// Shadow path protocol; independent of the main path so that next
	// event estimation shadow rays run in parallel with the main path's
	// continuation.
	ShadowPathInit(slot int, next device.Kernel)
	ShadowPathNext(slot int, current, next device.Kernel)
	ShadowPathTerminate(slot int, current device.Kernel)

	// Termination is defined solely by the liveness flag; the kernel
	// bitmask is not consulted.
	IsTerminated(slot int) bool
	IsShadowTerminated(slot int) bool
}

// QueueCounters tallies how many live paths currently want each kernel.
// One counter block exists per queue per path table; counters are mutated
// by many in-flight lanes concurrently so all updates are atomic.
type QueueCounters struct {
	numQueued [device.KernelCount]int32
}

func (qc *QueueCounters) add(kernel device.Kernel) {
	atomic.AddInt32(&qc.numQueued[kernel], 1)
}

func (qc *QueueCounters) sub(kernel device.Kernel) {
	atomic.AddInt32(&qc.numQueued[kernel], -1)
}

// Get the number of paths queued for the given kernel.
func (qc *QueueCounters) NumQueued(kernel device.Kernel) int {
	return int(atomic.LoadInt32(&qc.numQueued[kernel]))
}

// Get the total number of queued paths across all kernels.
func (qc *QueueCounters) Total() int {
	total := 0
	var kernel device.Kernel
	for kernel = 0; kernel < device.KernelCount; kernel++ {
		total += qc.NumQueued(kernel)
	}
	return total
}

// Get the kernel with the most queued paths and its count.
func (qc *QueueCounters) MostQueued() (device.Kernel, int) {
	var best device.Kernel
	bestCount := 0
	var kernel device.Kernel
	for kernel = 0; kernel < device.KernelCount; kernel++ {
		if count := qc.NumQueued(kernel); count > bestCount {
			best, bestCount = kernel, count
		}
	}
	return best, bestCount
}

// WavefrontState is a structure-of-arrays table holding the continuation
// state for the paths resident on one queue: a queued-kernel bitmask and a
// liveness flag per slot for the main path and, independently, for the
// shadow path. Slot indices are reused once their path terminates; no two
// live paths share a slot.
type WavefrontState struct {
	capacity int

	queuedKernels []uint32
	flags         []uint32
	counters      QueueCounters

	shadowQueuedKernels []uint32
	shadowFlags         []uint32
	shadowCounters      QueueCounters
}

// Create a path state table with the given slot capacity.
func NewWavefrontState(capacity int) *WavefrontState {
	if capacity <= 0 {
		panic(fmt.Sprintf("path state: invalid capacity %d", capacity))
	}

	return &WavefrontState{
		capacity:            capacity,
		queuedKernels:       make([]uint32, capacity),
		flags:               make([]uint32, capacity),
		shadowQueuedKernels: make([]uint32, capacity),
		shadowFlags:         make([]uint32, capacity),
	}
}

// Get the number of path slots.
func (st *WavefrontState) Capacity() int {
	return st.capacity
}

// Reset all slots to terminated and zero the counters. Must not be called
// while a dispatch against this table is in flight.
func (st *WavefrontState) Reset() {
	for slot := 0; slot < st.capacity; slot++ {
		st.queuedKernels[slot] = 0
		st.flags[slot] = 0
		st.shadowQueuedKernels[slot] = 0
		st.shadowFlags[slot] = 0
	}
	st.counters = QueueCounters{}
	st.shadowCounters = QueueCounters{}
}

// Mark a slot as holding a live path. Must precede the PathInit call when a
// slot is seeded or reseeded; the slot must be terminated beforehand.
func (st *WavefrontState) Seed(slot int) {
	if !st.IsTerminated(slot) {
		panic(fmt.Sprintf("path state: seeding live slot %d", slot))
	}
	atomic.StoreUint32(&st.flags[slot], 1)
}

// Mark a slot as holding a live shadow path.
func (st *WavefrontState) SeedShadow(slot int) {
	if !st.IsShadowTerminated(slot) {
		panic(fmt.Sprintf("path state: seeding live shadow slot %d", slot))
	}
	atomic.StoreUint32(&st.shadowFlags[slot], 1)
}

// Queue a path for the next kernel.
func (st *WavefrontState) PathInit(slot int, next device.Kernel) {
	st.counters.add(next)
	atomicOr32(&st.queuedKernels[slot], 1<<next)
}

// Move a path from its current kernel to the next one.
func (st *WavefrontState) PathNext(slot int, current, next device.Kernel) {
	st.counters.sub(current)
	st.counters.add(next)
	atomicOr32(&st.queuedKernels[slot], 1<<next)
	atomicAndNot32(&st.queuedKernels[slot], 1<<current)
}

// Terminate a path.
func (st *WavefrontState) PathTerminate(slot int, current device.Kernel) {
	st.counters.sub(current)
	atomicAndNot32(&st.queuedKernels[slot], 1<<current)
	atomic.StoreUint32(&st.flags[slot], 0)
}

// Queue a shadow path for the next kernel.
func (st *WavefrontState) ShadowPathInit(slot int, next device.Kernel) {
	st.shadowCounters.add(next)
	atomicOr32(&st.shadowQueuedKernels[slot], 1<<next)
}

// Move a shadow path from its current kernel to the next one.
func (st *WavefrontState) ShadowPathNext(slot int, current, next device.Kernel) {
	st.shadowCounters.sub(current)
	st.shadowCounters.add(next)
	atomicOr32(&st.shadowQueuedKernels[slot], 1<<next)
	atomicAndNot32(&st.shadowQueuedKernels[slot], 1<<current)
}

// Terminate a shadow path.
func (st *WavefrontState) ShadowPathTerminate(slot int, current device.Kernel) {
	st.shadowCounters.sub(current)
	atomicAndNot32(&st.shadowQueuedKernels[slot], 1<<current)
	atomic.StoreUint32(&st.shadowFlags[slot], 0)
}

// Check whether the main path in a slot has terminated.
func (st *WavefrontState) IsTerminated(slot int) bool {
	return atomic.LoadUint32(&st.flags[slot]) == 0
}

// Check whether the shadow path in a slot has terminated.
func (st *WavefrontState) IsShadowTerminated(slot int) bool {
	return atomic.LoadUint32(&st.shadowFlags[slot]) == 0
}

// Check whether the main path in a slot is queued for the given kernel.
func (st *WavefrontState) IsQueued(slot int, kernel device.Kernel) bool {
	return atomic.LoadUint32(&st.queuedKernels[slot])&(1<<kernel) != 0
}

// Check whether the shadow path in a slot is queued for the given kernel.
func (st *WavefrontState) IsShadowQueued(slot int, kernel device.Kernel) bool {
	return atomic.LoadUint32(&st.shadowQueuedKernels[slot])&(1<<kernel) != 0
}

// Get the main path counter block.
func (st *WavefrontState) Counters() *QueueCounters {
	return &st.counters
}

// Get the shadow path counter block.
func (st *WavefrontState) ShadowCounters() *QueueCounters {
	return &st.shadowCounters
}

// Get the kernel the queue should dispatch next: the one the most paths,
// main or shadow, are currently waiting on. Shadow work wins ties so that a
// branched shadow path drains before its main path reaches the next shading
// kernel. A zero count means the tile's paths have drained.
func (st *WavefrontState) NextDispatch() (device.Kernel, int) {
	kernel, count := st.counters.MostQueued()
	if shadowKernel, shadowCount := st.shadowCounters.MostQueued(); shadowCount > 0 && shadowCount >= count {
		kernel, count = shadowKernel, shadowCount
	}
	return kernel, count
}

// MegakernelState is the degenerate continuation protocol used when paths
// execute start-to-finish inside a single kernel call: init and next are
// no-ops, terminate only drops the liveness flag and no cross-path counters
// are maintained.
type MegakernelState struct {
	flags       []uint32
	shadowFlags []uint32
}

// Create a megakernel path state table with the given slot capacity.
func NewMegakernelState(capacity int) *MegakernelState {
	if capacity <= 0 {
		panic(fmt.Sprintf("path state: invalid capacity %d", capacity))
	}

	return &MegakernelState{
		flags:       make([]uint32, capacity),
		shadowFlags: make([]uint32, capacity),
	}
}

// Mark a slot as holding a live path.
func (st *MegakernelState) Seed(slot int) {
	st.flags[slot] = 1
}

// Mark a slot as holding a live shadow path.
func (st *MegakernelState) SeedShadow(slot int) {
	st.shadowFlags[slot] = 1
}

func (st *MegakernelState) PathInit(slot int, next device.Kernel) {}

func (st *MegakernelState) PathNext(slot int, current, next device.Kernel) {}

func (st *MegakernelState) PathTerminate(slot int, current device.Kernel) {
	st.flags[slot] = 0
}

func (st *MegakernelState) ShadowPathInit(slot int, next device.Kernel) {}

func (st *MegakernelState) ShadowPathNext(slot int, current, next device.Kernel) {}

func (st *MegakernelState) ShadowPathTerminate(slot int, current device.Kernel) {
	st.shadowFlags[slot] = 0
}

// Check whether the main path in a slot has terminated.
func (st *MegakernelState) IsTerminated(slot int) bool {
	return st.flags[slot] == 0
}

// Check whether the shadow path in a slot has terminated.
func (st *MegakernelState) IsShadowTerminated(slot int) bool {
	return st.shadowFlags[slot] == 0
}

// Atomic bit set/clear via compare-and-swap.
func atomicOr32(addr *uint32, mask uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old|mask) {
			return
		}
	}
}

func atomicAndNot32(addr *uint32, mask uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old&^mask) {
			return
		}
	}
}
