package renderer

import "image"

type Renderer interface {
	// Render the next sample batch into the frame accumulator.
	Render() error

	// Resolve the accumulated samples into a displayable frame.
	Frame() *image.RGBA

	// Shutdown renderer and the attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}
