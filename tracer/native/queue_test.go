package native

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/helios-pt/helios/tracer/device"
)

func TestDeviceQueueAllocation(t *testing.T) {
	if _, err := NewDevice(0); err == nil {
		t.Fatal("expected device creation with no queues to fail")
	}

	dev, err := NewDevice(1)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	if dev.ConcurrentQueues() != 1 {
		t.Fatalf("expected device to expose 1 concurrent queue; got %d", dev.ConcurrentQueues())
	}

	q, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	if q.Name() == "" {
		t.Fatal("expected queue to be assigned a name")
	}

	if _, err = dev.NewQueue(); err == nil {
		t.Fatal("expected queue creation beyond the concurrent queue count to fail")
	}
}

func TestQueueEnqueueBeforeInit(t *testing.T) {
	q := makeTestQueue(t)
	q.Register(device.KernelInitFromCamera, func(lane int, args []interface{}) error { return nil })

	err := q.Enqueue(device.KernelInitFromCamera, 1)
	if err == nil || !strings.Contains(err.Error(), "enqueue before InitExecution") {
		t.Fatalf("expected an init error; got %v", err)
	}

	// The error sticks until the queue is synchronized
	if syncErr := q.Synchronize(); syncErr != err {
		t.Fatalf("expected Synchronize to report the sticky error; got %v", syncErr)
	}

	if err = q.InitExecution(); err != nil {
		t.Fatal(err)
	}
	if err = q.Enqueue(device.KernelInitFromCamera, 1); err != nil {
		t.Fatal(err)
	}
	if err = q.Synchronize(); err != nil {
		t.Fatal(err)
	}
}

func TestQueueUnregisteredKernel(t *testing.T) {
	q := makeTestQueue(t)
	if err := q.InitExecution(); err != nil {
		t.Fatal(err)
	}

	err := q.Enqueue(device.KernelShadeVolume, 1)
	if err == nil || !strings.Contains(err.Error(), "no implementation registered for kernel shadeVolume") {
		t.Fatalf("expected a missing kernel error; got %v", err)
	}
}

func TestQueueStickyError(t *testing.T) {
	expErr := errors.New("lane failure")

	q := makeTestQueue(t)
	q.Register(device.KernelIntersectClosest, func(lane int, args []interface{}) error { return expErr })
	q.Register(device.KernelShadeSurface, func(lane int, args []interface{}) error { return nil })
	if err := q.InitExecution(); err != nil {
		t.Fatal(err)
	}

	err := q.Enqueue(device.KernelIntersectClosest, 1)
	if err == nil || !strings.Contains(err.Error(), expErr.Error()) {
		t.Fatalf("expected the lane failure to surface; got %v", err)
	}

	// Further enqueues report the same sticky error without dispatching
	if nextErr := q.Enqueue(device.KernelShadeSurface, 1); nextErr != err {
		t.Fatalf("expected the sticky error to be reported; got %v", nextErr)
	}

	// Synchronize reports and clears the sticky error
	if syncErr := q.Synchronize(); syncErr != err {
		t.Fatalf("expected Synchronize to report the sticky error; got %v", syncErr)
	}
	if err = q.Enqueue(device.KernelShadeSurface, 1); err != nil {
		t.Fatal(err)
	}
	if err = q.Synchronize(); err != nil {
		t.Fatal(err)
	}
}

func TestQueueDispatchExecutesEveryLaneOnce(t *testing.T) {
	// Large enough to fan out across multiple workers
	workSize := minLanesPerWorker * 16

	laneRuns := make([]int32, workSize)
	q := makeTestQueue(t)
	q.Register(device.KernelInitFromCamera, func(lane int, args []interface{}) error {
		atomic.AddInt32(&laneRuns[lane], 1)
		return nil
	})
	if err := q.InitExecution(); err != nil {
		t.Fatal(err)
	}

	if err := q.Enqueue(device.KernelInitFromCamera, workSize); err != nil {
		t.Fatal(err)
	}
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}

	for lane, runs := range laneRuns {
		if runs != 1 {
			t.Fatalf("expected lane %d to execute exactly once; got %d runs", lane, runs)
		}
	}
}

func TestQueueDispatchArgs(t *testing.T) {
	var gotArg interface{}
	q := makeTestQueue(t)
	q.Register(device.KernelInitFromCamera, func(lane int, args []interface{}) error {
		gotArg = args[0]
		return nil
	})
	if err := q.InitExecution(); err != nil {
		t.Fatal(err)
	}

	if err := q.Enqueue(device.KernelInitFromCamera, 1, int32(42)); err != nil {
		t.Fatal(err)
	}
	if gotArg != int32(42) {
		t.Fatalf("expected the dispatch arg to be passed through; got %v", gotArg)
	}
}

func TestBufferAccessors(t *testing.T) {
	i32 := NewInt32Buffer("lanes", 8)
	if i32.Name() != "lanes" || i32.Size() != 32 || len(i32.Int32s()) != 8 {
		t.Fatalf("unexpected int32 buffer shape: name %q size %d len %d", i32.Name(), i32.Size(), len(i32.Int32s()))
	}

	f32 := NewFloat32Buffer("beta", 4)
	if f32.Name() != "beta" || f32.Size() != 16 || len(f32.Float32s()) != 4 {
		t.Fatalf("unexpected float32 buffer shape: name %q size %d len %d", f32.Name(), f32.Size(), len(f32.Float32s()))
	}
	f32.Release()
}

func makeTestQueue(t *testing.T) *Queue {
	dev, err := NewDevice(1)
	if err != nil {
		t.Fatal(err)
	}

	q, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	return q
}
