package tracer

import (
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"unsafe"
)

// Number of float32 channels stored per pixel: accumulated RGB radiance
// plus a sample count.
const BufferChannels = 4

// BufferParams describes the pixel range a render buffer covers and how
// pixel coordinates map to offsets inside its storage.
type BufferParams struct {
	// Buffer dims in pixels.
	Width  int
	Height int

	// Offset of this buffer within the full frame. Accessors take
	// frame-absolute coordinates so tile-local buffers address their
	// pixels the same way the frame buffer does.
	FullX int
	FullY int
}

// Get the float32 offset for the given frame-absolute pixel coordinates.
func (bp BufferParams) Offset(x, y int) int {
	return ((y-bp.FullY)*bp.Width + (x - bp.FullX)) * BufferChannels
}

// Get the per-row stride in float32 elements.
func (bp BufferParams) Stride() int {
	return bp.Width * BufferChannels
}

// RenderBuffer is a 2D accumulation target. Radiance samples are added with
// lock-free float atomics so kernels dispatched on different queues can
// accumulate into overlapping pixel regions concurrently.
type RenderBuffer struct {
	params BufferParams
	data   []float32
}

// Create a new render buffer covering the given pixel range.
func NewRenderBuffer(params BufferParams) *RenderBuffer {
	return &RenderBuffer{
		params: params,
		data:   make([]float32, params.Width*params.Height*BufferChannels),
	}
}

// Get buffer params.
func (rb *RenderBuffer) Params() BufferParams {
	return rb.params
}

// Accumulate radiance for a pixel.
func (rb *RenderBuffer) AddRadiance(x, y int, r, g, b float32) {
	offset := rb.params.Offset(x, y)
	atomicAddFloat32(&rb.data[offset], r)
	atomicAddFloat32(&rb.data[offset+1], g)
	atomicAddFloat32(&rb.data[offset+2], b)
}

// Increase the completed sample count for a pixel.
func (rb *RenderBuffer) AddSampleCount(x, y int, count int) {
	atomicAddFloat32(&rb.data[rb.params.Offset(x, y)+3], float32(count))
}

// Get the accumulated radiance and sample count for a pixel.
func (rb *RenderBuffer) At(x, y int) (r, g, b, samples float32) {
	offset := rb.params.Offset(x, y)
	return rb.data[offset], rb.data[offset+1], rb.data[offset+2], rb.data[offset+3]
}

// Merge accumulates every channel of a tile-local buffer into the region
// this buffer covers for it. Workers render each tile into its own staging
// buffer and merge only on success, so a failed dispatch batch contributes
// nothing and results from completed tiles sharing the same pixels stay
// intact. Safe to call concurrently with other merges and radiance adds.
func (rb *RenderBuffer) Merge(tile *RenderBuffer) {
	tp := tile.params
	for y := 0; y < tp.Height; y++ {
		srcOffset := tp.Offset(tp.FullX, tp.FullY+y)
		dstOffset := rb.params.Offset(tp.FullX, tp.FullY+y)
		for i := 0; i < tp.Width*BufferChannels; i++ {
			if v := tile.data[srcOffset+i]; v != 0 {
				atomicAddFloat32(&rb.data[dstOffset+i], v)
			}
		}
	}
}

// Resolve the accumulated radiance into an LDR image applying exposure
// scaling and simple Reinhard tone-mapping. Pixels with no completed
// samples resolve to black.
func (rb *RenderBuffer) RGBA(exposure float32) *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, rb.params.Width, rb.params.Height))
	for y := 0; y < rb.params.Height; y++ {
		for x := 0; x < rb.params.Width; x++ {
			r, g, b, samples := rb.At(rb.params.FullX+x, rb.params.FullY+y)
			var out color.RGBA
			if samples > 0 {
				scaler := exposure / samples
				out.R = tonemapChannel(r * scaler)
				out.G = tonemapChannel(g * scaler)
				out.B = tonemapChannel(b * scaler)
			}
			out.A = 0xff
			im.SetRGBA(x, y, out)
		}
	}
	return im
}

func tonemapChannel(v float32) uint8 {
	mapped := v / (1.0 + v)
	if mapped < 0 {
		mapped = 0
	} else if mapped > 1 {
		mapped = 1
	}
	return uint8(mapped * 255.0)
}

// Lock-free float accumulation via compare-and-swap on the raw bits.
func atomicAddFloat32(addr *float32, delta float32) {
	bitsAddr := (*uint32)(unsafe.Pointer(addr))
	for {
		oldBits := atomic.LoadUint32(bitsAddr)
		newBits := math.Float32bits(math.Float32frombits(oldBits) + delta)
		if atomic.CompareAndSwapUint32(bitsAddr, oldBits, newBits) {
			return
		}
	}
}
