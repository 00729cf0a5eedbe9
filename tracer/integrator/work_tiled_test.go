package integrator

import (
	"errors"
	"testing"

	"github.com/helios-pt/helios/tracer"
	"github.com/helios-pt/helios/tracer/device"
	"github.com/helios-pt/helios/tracer/native"
)

func TestNewTiledValidation(t *testing.T) {
	if _, err := NewTiled("test", nil); err != ErrNoQueues {
		t.Fatalf("expected ErrNoQueues; got %v", err)
	}

	dev, err := native.NewDevice(2)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	q0, _ := dev.NewQueue()
	q1, _ := dev.NewQueue()
	queues := []QueueState{
		{Queue: q0, State: NewWavefrontState(4)},
		{Queue: q1, State: NewWavefrontState(8)},
	}
	if _, err = NewTiled("test", queues); err != ErrCapacityMismatch {
		t.Fatalf("expected ErrCapacityMismatch; got %v", err)
	}
}

func TestTiledTracerRequiresInit(t *testing.T) {
	tr, err := NewNative("test", Config{NumQueues: 1, MaxPathStates: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 2, Height: 2})
	if err = tr.RenderSamples(buf, 0, 1); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized; got %v", err)
	}
}

func TestTiledTracerRenderSamples(t *testing.T) {
	tr, err := NewNative("test", Config{NumQueues: 2, MaxPathStates: 8, MaxBounces: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 4, Height: 4})
	if err = tr.RenderSamples(buf, 0, 10); err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b, samples := buf.At(x, y)
			if samples != 10 {
				t.Fatalf("expected pixel (%d,%d) to accumulate 10 samples; got %f", x, y, samples)
			}
			if r <= 0 || g <= 0 || b <= 0 {
				t.Fatalf("expected pixel (%d,%d) to accumulate radiance; got (%f, %f, %f)", x, y, r, g, b)
			}
		}
	}

	stats := tr.Stats()
	if stats.Tiles == 0 {
		t.Fatal("expected the render pass to issue at least one tile")
	}
	var completed uint32
	for _, queueStat := range stats.Queues {
		if queueStat.FailedTiles != 0 {
			t.Fatalf("queue %s: expected no failed tiles; got %d", queueStat.Id, queueStat.FailedTiles)
		}
		completed += queueStat.Tiles
	}
	if completed != stats.Tiles {
		t.Fatalf("expected the queues to complete all %d tiles; got %d", stats.Tiles, completed)
	}
}

func TestTiledTracerDrainsCounters(t *testing.T) {
	tr, err := NewNative("test", Config{NumQueues: 2, MaxPathStates: 8, MaxBounces: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 4, Height: 4})
	if err = tr.RenderSamples(buf, 0, 3); err != nil {
		t.Fatal(err)
	}

	for i := range tr.queues {
		state := tr.queues[i].State
		if total := state.Counters().Total() + state.ShadowCounters().Total(); total != 0 {
			t.Fatalf("queue %d: expected all path counters to drain; got %d queued paths", i, total)
		}
	}
}

func TestTiledTracerSampleAccumulation(t *testing.T) {
	tr, err := NewNative("test", Config{NumQueues: 1, MaxPathStates: 4, MaxBounces: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	// Two incremental passes continue the sample sequence of one combined
	// pass
	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 2, Height: 2})
	if err = tr.RenderSamples(buf, 0, 4); err != nil {
		t.Fatal(err)
	}
	if err = tr.RenderSamples(buf, 4, 4); err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if _, _, _, samples := buf.At(x, y); samples != 8 {
				t.Fatalf("expected pixel (%d,%d) to accumulate 8 samples; got %f", x, y, samples)
			}
		}
	}
}

func TestTiledTracerQueueCountInvariance(t *testing.T) {
	// One sample per pixel keeps every pixel inside a single tile so the
	// result must not depend on how tiles land on queues
	render := func(numQueues int) *tracer.RenderBuffer {
		tr, err := NewNative("test", Config{NumQueues: numQueues, MaxPathStates: 8, MaxBounces: 2})
		if err != nil {
			t.Fatal(err)
		}
		defer tr.Close()

		if err = tr.InitExecution(); err != nil {
			t.Fatal(err)
		}

		buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 4, Height: 4})
		if err = tr.RenderSamples(buf, 0, 1); err != nil {
			t.Fatal(err)
		}
		return buf
	}

	buf1 := render(1)
	buf2 := render(2)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r1, g1, b1, s1 := buf1.At(x, y)
			r2, g2, b2, s2 := buf2.At(x, y)
			if r1 != r2 || g1 != g2 || b1 != b2 || s1 != s2 {
				t.Fatalf("pixel (%d,%d) diverged between queue counts: (%f, %f, %f, %f) vs (%f, %f, %f, %f)",
					x, y, r1, g1, b1, s1, r2, g2, b2, s2)
			}
		}
	}
}

// Register a minimal kernel pair that retires every seeded path at the
// background shader with a unit radiance contribution. Dispatch batches for
// tiles matched by failTile fail at the seeding kernel.
func registerRetireKernels(q *native.Queue, state *WavefrontState, failTile func(WorkTile) bool) {
	q.Register(device.KernelInitFromCamera, func(lane int, args []interface{}) error {
		tile, _, err := dispatchArgs(args)
		if err != nil {
			return err
		}
		if failTile != nil && failTile(tile) {
			return errors.New("device lost")
		}
		state.Seed(lane)
		state.PathInit(lane, device.KernelShadeBackground)
		return nil
	})
	q.Register(device.KernelShadeBackground, func(lane int, args []interface{}) error {
		tile, buf, err := dispatchArgs(args)
		if err != nil {
			return err
		}
		if !state.IsQueued(lane, device.KernelShadeBackground) {
			return nil
		}
		x, y, _ := tile.Lane(lane)
		buf.AddRadiance(x, y, 1, 1, 1)
		buf.AddSampleCount(x, y, 1)
		state.PathTerminate(lane, device.KernelShadeBackground)
		return nil
	})
}

func TestTiledTracerFailedTilesContributeNothing(t *testing.T) {
	dev, err := native.NewDevice(1)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	q, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}

	// Every dispatch batch fails at the seeding kernel
	state := NewWavefrontState(4)
	registerRetireKernels(q, state, func(WorkTile) bool { return true })

	tr, err := NewTiled("test", []QueueState{{Queue: q, State: state}})
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 4, Height: 4})
	buf.AddRadiance(0, 0, 1, 1, 1)
	buf.AddSampleCount(0, 0, 1)

	err = tr.RenderSamples(buf, 0, 1)
	if err == nil {
		t.Fatal("expected the render pass to report the device failure")
	}

	stats := tr.Stats()
	if stats.Queues[0].FailedTiles != stats.Tiles {
		t.Fatalf("expected all %d tiles to fail; got %d", stats.Tiles, stats.Queues[0].FailedTiles)
	}
	if stats.Queues[0].Tiles != 0 {
		t.Fatalf("expected no completed tiles; got %d", stats.Queues[0].Tiles)
	}

	// Results accumulated before the failing pass must stay intact and the
	// failed tiles must not add anything on top
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b, samples := buf.At(x, y)
			if x == 0 && y == 0 {
				if r != 1 || g != 1 || b != 1 || samples != 1 {
					t.Fatalf("expected pixel (0,0) to retain its prior result; got (%f, %f, %f, %f)", r, g, b, samples)
				}
				continue
			}
			if r != 0 || g != 0 || b != 0 || samples != 0 {
				t.Fatalf("expected pixel (%d,%d) to stay empty; got (%f, %f, %f, %f)", x, y, r, g, b, samples)
			}
		}
	}
}

func TestTiledTracerFailedChunkRetainsSiblingChunks(t *testing.T) {
	dev, err := native.NewDevice(1)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	q, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}

	// Capacity 4 carves a 1x1 x 10 sample frame into sample chunks of
	// 4, 4 and 2 samples over the same pixel. Only the middle chunk fails.
	state := NewWavefrontState(4)
	registerRetireKernels(q, state, func(tile WorkTile) bool { return tile.StartSample == 4 })

	tr, err := NewTiled("test", []QueueState{{Queue: q, State: state}})
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 1, Height: 1})
	err = tr.RenderSamples(buf, 0, 10)
	if err == nil {
		t.Fatal("expected the render pass to report the device failure")
	}

	stats := tr.Stats()
	if stats.Tiles != 3 {
		t.Fatalf("expected the pass to issue 3 tiles; got %d", stats.Tiles)
	}
	if stats.Queues[0].FailedTiles != 1 {
		t.Fatalf("expected 1 failed tile; got %d", stats.Queues[0].FailedTiles)
	}
	if stats.Queues[0].Tiles != 2 {
		t.Fatalf("expected 2 completed tiles; got %d", stats.Queues[0].Tiles)
	}

	// The completed chunks cover 6 of the 10 samples and their results must
	// survive the sibling chunk's failure
	r, g, b, samples := buf.At(0, 0)
	if samples != 6 {
		t.Fatalf("expected the completed chunks to retain 6 samples; got %f", samples)
	}
	if r != 6 || g != 6 || b != 6 {
		t.Fatalf("expected the completed chunks to retain their radiance; got (%f, %f, %f)", r, g, b)
	}
}

func TestTiledTracerPartialFailureRetainsCompletedTiles(t *testing.T) {
	dev, err := native.NewDevice(2)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	q0, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	state0 := NewWavefrontState(4)
	registerReferenceKernels(q0, state0, 1)

	q1, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	q1.Register(device.KernelInitFromCamera, func(lane int, args []interface{}) error {
		return errors.New("device lost")
	})

	tr, err := NewTiled("test", []QueueState{
		{Queue: q0, State: state0},
		{Queue: q1, State: NewWavefrontState(4)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = tr.InitExecution(); err != nil {
		t.Fatal(err)
	}

	// Capacity 4 carves 4x4 x 1 sample into four single row tiles
	buf := tracer.NewRenderBuffer(tracer.BufferParams{Width: 4, Height: 4})
	err = tr.RenderSamples(buf, 0, 1)

	stats := tr.Stats()
	if stats.Queues[1].FailedTiles > 0 && err == nil {
		t.Fatal("expected the render pass to report the failing queue")
	}
	if completed := stats.Queues[0].Tiles; completed+stats.Queues[1].FailedTiles != stats.Tiles {
		t.Fatalf("expected %d tiles to be either completed or failed; got %d completed and %d failed",
			stats.Tiles, completed, stats.Queues[1].FailedTiles)
	}

	// Each row was either fully rendered by the healthy queue or left
	// untouched after failing on the broken one
	completedRows := 0
	for y := 0; y < 4; y++ {
		_, _, _, first := buf.At(0, y)
		for x := 0; x < 4; x++ {
			if _, _, _, samples := buf.At(x, y); samples != first {
				t.Fatalf("row %d is partially rendered", y)
			}
		}
		if first == 1 {
			completedRows++
		} else if first != 0 {
			t.Fatalf("row %d carries an unexpected sample count %f", y, first)
		}
	}
	if completedRows != int(stats.Queues[0].Tiles) {
		t.Fatalf("expected %d completed rows; got %d", stats.Queues[0].Tiles, completedRows)
	}
}
