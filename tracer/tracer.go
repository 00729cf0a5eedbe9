package tracer

import "time"

// Tracer renders sample batches into a render buffer.
type Tracer interface {
	// Get tracer id.
	Id() string

	// Initialize kernel execution on all owned device queues. Must be
	// called once before the first RenderSamples call.
	InitExecution() error

	// Render samplesNum samples starting at startSample for every pixel
	// covered by the buffer and accumulate the results into it. Results
	// from tiles that completed before a device failure are retained.
	RenderSamples(buf *RenderBuffer, startSample, samplesNum int) error

	// Retrieve statistics for the last RenderSamples call.
	Stats() *Stats

	// Shutdown and cleanup tracer.
	Close()
}

// Per queue statistics.
type QueueStat struct {
	// The queue id.
	Id string

	// Number of tiles rendered and number of tiles that failed.
	Tiles       uint32
	FailedTiles uint32

	// Time spent rendering the assigned tiles.
	RenderTime time.Duration
}

// Tracer statistics.
type Stats struct {
	// Individual queue stats.
	Queues []QueueStat

	// Total number of tiles issued by the work scheduler.
	Tiles uint32

	// Total render time for the last sample batch.
	RenderTime time.Duration
}
