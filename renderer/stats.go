package renderer

import (
	"time"

	"github.com/helios-pt/helios/tracer"
)

type FrameStats struct {
	// Individual queue stats for the last render pass.
	Queues []tracer.QueueStat

	// Number of tiles issued during the last render pass.
	Tiles uint32

	// Total samples per pixel accumulated so far.
	AccumulatedSamples int

	// Render time for the last pass.
	RenderTime time.Duration
}
