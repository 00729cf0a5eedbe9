package renderer

import "testing"

func TestNewDefaultValidation(t *testing.T) {
	if _, err := NewDefault(Options{FrameW: 0, FrameH: 16}); err != ErrInvalidFrameDims {
		t.Fatalf("expected ErrInvalidFrameDims; got %v", err)
	}
	if _, err := NewDefault(Options{FrameW: 16, FrameH: -1}); err != ErrInvalidFrameDims {
		t.Fatalf("expected ErrInvalidFrameDims; got %v", err)
	}
}

func TestDefaultRendererProgressiveAccumulation(t *testing.T) {
	r, err := NewDefault(Options{
		FrameW:          8,
		FrameH:          8,
		SamplesPerPixel: 2,
		NumBounces:      2,
		NumQueues:       2,
		MaxPathStates:   16,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Each pass accumulates another batch of samples
	for pass := 1; pass <= 3; pass++ {
		if err = r.Render(); err != nil {
			t.Fatal(err)
		}

		stats := r.Stats()
		if expSamples := pass * 2; stats.AccumulatedSamples != expSamples {
			t.Fatalf("[pass %d] expected %d accumulated samples; got %d", pass, expSamples, stats.AccumulatedSamples)
		}
		if stats.Tiles == 0 {
			t.Fatalf("[pass %d] expected the pass to issue tiles", pass)
		}
	}
}

func TestDefaultRendererFrame(t *testing.T) {
	r, err := NewDefault(Options{
		FrameW:          4,
		FrameH:          4,
		SamplesPerPixel: 1,
		MaxPathStates:   8,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err = r.Render(); err != nil {
		t.Fatal(err)
	}

	im := r.Frame()
	bounds := im.Bounds()
	if bounds.Dx() != 4 || bounds.Dy() != 4 {
		t.Fatalf("expected a 4x4 frame; got %dx%d", bounds.Dx(), bounds.Dy())
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			out := im.RGBAAt(x, y)
			if out.A != 0xff {
				t.Fatalf("expected pixel (%d,%d) to be opaque; got alpha %d", x, y, out.A)
			}
			if out.R == 0 && out.G == 0 && out.B == 0 {
				t.Fatalf("expected pixel (%d,%d) to carry radiance", x, y)
			}
		}
	}
}
