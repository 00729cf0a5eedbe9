package renderer

import (
	"image"
	"time"

	"github.com/helios-pt/helios/log"
	"github.com/helios-pt/helios/tracer"
	"github.com/helios-pt/helios/tracer/integrator"
)

// defaultRenderer drives a tiled wavefront tracer and accumulates sample
// batches into a frame buffer.
type defaultRenderer struct {
	logger log.Logger

	opts   Options
	tracer tracer.Tracer
	buf    *tracer.RenderBuffer

	accumulatedSamples int
	stats              FrameStats
}

// Create a new renderer backed by the native wavefront tracer.
func NewDefault(opts Options) (Renderer, error) {
	if opts.FrameW <= 0 || opts.FrameH <= 0 {
		return nil, ErrInvalidFrameDims
	}
	if opts.SamplesPerPixel <= 0 {
		opts.SamplesPerPixel = 1
	}
	if opts.Exposure == 0 {
		opts.Exposure = 1.0
	}

	tr, err := integrator.NewNative("helios", integrator.Config{
		NumQueues:     opts.NumQueues,
		MaxPathStates: opts.MaxPathStates,
		MaxBounces:    opts.NumBounces,
	})
	if err != nil {
		return nil, err
	}

	if err = tr.InitExecution(); err != nil {
		tr.Close()
		return nil, err
	}

	return &defaultRenderer{
		logger: log.New("renderer"),
		opts:   opts,
		tracer: tr,
		buf: tracer.NewRenderBuffer(tracer.BufferParams{
			Width:  opts.FrameW,
			Height: opts.FrameH,
		}),
	}, nil
}

// Render the next sample batch. Each call continues the sample sequence
// where the previous call stopped so successive calls refine the frame.
func (r *defaultRenderer) Render() error {
	start := time.Now()
	err := r.tracer.RenderSamples(r.buf, r.accumulatedSamples, r.opts.SamplesPerPixel)
	if err != nil {
		return err
	}

	r.accumulatedSamples += r.opts.SamplesPerPixel

	trStats := r.tracer.Stats()
	r.stats = FrameStats{
		Queues:             trStats.Queues,
		Tiles:              trStats.Tiles,
		AccumulatedSamples: r.accumulatedSamples,
		RenderTime:         time.Since(start),
	}
	r.logger.Infof("rendered %d samples/pixel in %s (%d tiles)",
		r.opts.SamplesPerPixel, r.stats.RenderTime, r.stats.Tiles)

	return nil
}

// Resolve the accumulated samples into a displayable frame.
func (r *defaultRenderer) Frame() *image.RGBA {
	return r.buf.RGBA(r.opts.Exposure)
}

// Shutdown renderer and the attached tracer.
func (r *defaultRenderer) Close() {
	if r.tracer != nil {
		r.tracer.Close()
		r.tracer = nil
	}
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}
