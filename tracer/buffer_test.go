package tracer

import (
	"sync"
	"testing"
)

func TestBufferParamsOffset(t *testing.T) {
	type spec struct {
		params    BufferParams
		x, y      int
		expOffset int
	}

	frame := BufferParams{Width: 4, Height: 3}
	tile := BufferParams{Width: 2, Height: 2, FullX: 1, FullY: 1}
	specs := []spec{
		{frame, 0, 0, 0},
		{frame, 1, 0, BufferChannels},
		{frame, 3, 0, 3 * BufferChannels},
		{frame, 0, 1, 4 * BufferChannels},
		{frame, 3, 2, 11 * BufferChannels},
		// Tile-local buffers take the same frame-absolute coordinates
		{tile, 1, 1, 0},
		{tile, 2, 1, BufferChannels},
		{tile, 2, 2, 3 * BufferChannels},
	}

	for index, s := range specs {
		if offset := s.params.Offset(s.x, s.y); offset != s.expOffset {
			t.Fatalf("[spec %d] expected offset for (%d,%d) to be %d; got %d", index, s.x, s.y, s.expOffset, offset)
		}
	}

	if stride := frame.Stride(); stride != 4*BufferChannels {
		t.Fatalf("expected stride to be %d; got %d", 4*BufferChannels, stride)
	}
}

func TestRenderBufferAccumulate(t *testing.T) {
	buf := NewRenderBuffer(BufferParams{Width: 2, Height: 2})

	buf.AddRadiance(1, 1, 0.5, 0.25, 0.125)
	buf.AddRadiance(1, 1, 0.5, 0.25, 0.125)
	buf.AddSampleCount(1, 1, 2)

	r, g, b, samples := buf.At(1, 1)
	if r != 1.0 || g != 0.5 || b != 0.25 {
		t.Fatalf("expected accumulated radiance to be (1, 0.5, 0.25); got (%f, %f, %f)", r, g, b)
	}
	if samples != 2 {
		t.Fatalf("expected sample count to be 2; got %f", samples)
	}

	// The other pixels must stay untouched
	for _, coords := range [][2]int{{0, 0}, {1, 0}, {0, 1}} {
		r, g, b, samples = buf.At(coords[0], coords[1])
		if r != 0 || g != 0 || b != 0 || samples != 0 {
			t.Fatalf("expected pixel (%d,%d) to be empty; got (%f, %f, %f, %f)", coords[0], coords[1], r, g, b, samples)
		}
	}
}

func TestRenderBufferConcurrentAccumulate(t *testing.T) {
	buf := NewRenderBuffer(BufferParams{Width: 1, Height: 1})

	numWorkers := 8
	addsPerWorker := 1000

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < addsPerWorker; i++ {
				buf.AddRadiance(0, 0, 1, 1, 1)
				buf.AddSampleCount(0, 0, 1)
			}
		}()
	}
	wg.Wait()

	expTotal := float32(numWorkers * addsPerWorker)
	r, g, b, samples := buf.At(0, 0)
	if r != expTotal || g != expTotal || b != expTotal {
		t.Fatalf("expected accumulated radiance to be %f per channel; got (%f, %f, %f)", expTotal, r, g, b)
	}
	if samples != expTotal {
		t.Fatalf("expected sample count to be %f; got %f", expTotal, samples)
	}
}

func TestRenderBufferMerge(t *testing.T) {
	buf := NewRenderBuffer(BufferParams{Width: 4, Height: 4})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			buf.AddRadiance(x, y, 1, 1, 1)
			buf.AddSampleCount(x, y, 1)
		}
	}

	tile := NewRenderBuffer(BufferParams{Width: 2, Height: 2, FullX: 1, FullY: 1})
	for y := 1; y < 3; y++ {
		for x := 1; x < 3; x++ {
			tile.AddRadiance(x, y, 0.5, 0.25, 0.125)
			tile.AddSampleCount(x, y, 1)
		}
	}

	buf.Merge(tile)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			inRegion := x >= 1 && x < 3 && y >= 1 && y < 3

			r, g, b, samples := buf.At(x, y)
			if inRegion && (r != 1.5 || g != 1.25 || b != 1.125 || samples != 2) {
				t.Fatalf("expected merged pixel (%d,%d) to be (1.5, 1.25, 1.125, 2); got (%f, %f, %f, %f)", x, y, r, g, b, samples)
			}
			if !inRegion && (r != 1 || g != 1 || b != 1 || samples != 1) {
				t.Fatalf("expected pixel (%d,%d) outside the merged region to be intact; got (%f, %f, %f, %f)", x, y, r, g, b, samples)
			}
		}
	}
}

func TestRenderBufferConcurrentMerge(t *testing.T) {
	buf := NewRenderBuffer(BufferParams{Width: 1, Height: 1})

	numWorkers := 8
	mergesPerWorker := 100

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < mergesPerWorker; i++ {
				tile := NewRenderBuffer(BufferParams{Width: 1, Height: 1})
				tile.AddRadiance(0, 0, 1, 1, 1)
				tile.AddSampleCount(0, 0, 1)
				buf.Merge(tile)
			}
		}()
	}
	wg.Wait()

	expTotal := float32(numWorkers * mergesPerWorker)
	r, g, b, samples := buf.At(0, 0)
	if r != expTotal || g != expTotal || b != expTotal || samples != expTotal {
		t.Fatalf("expected all channels to accumulate to %f; got (%f, %f, %f, %f)", expTotal, r, g, b, samples)
	}
}

func TestRenderBufferRGBA(t *testing.T) {
	buf := NewRenderBuffer(BufferParams{Width: 2, Height: 1})

	// 2 samples of radiance 2 average to 1.0 which tonemaps to 0.5
	buf.AddRadiance(0, 0, 2, 2, 2)
	buf.AddRadiance(0, 0, 2, 2, 2)
	buf.AddSampleCount(0, 0, 2)

	im := buf.RGBA(1.0)

	out := im.RGBAAt(0, 0)
	if out.R != 127 || out.G != 127 || out.B != 127 || out.A != 0xff {
		t.Fatalf("expected tonemapped pixel to be (127, 127, 127, 255); got %v", out)
	}

	// Pixels with no completed samples resolve to opaque black
	out = im.RGBAAt(1, 0)
	if out.R != 0 || out.G != 0 || out.B != 0 || out.A != 0xff {
		t.Fatalf("expected empty pixel to resolve to opaque black; got %v", out)
	}
}
