package integrator

// WorkTile is a bounded unit of (pixel, sample) work sized to fit within
// one queue's path slot capacity. Tiles are immutable once issued and each
// one is consumed by exactly one worker.
type WorkTile struct {
	// Top-left corner and dims of the covered pixel region.
	X, Y int
	W, H int

	// The covered sample range.
	StartSample int
	NumSamples  int
}

// Get the number of path states required to trace this tile.
func (wt WorkTile) WorkSize() int {
	return wt.W * wt.H * wt.NumSamples
}

// Map a dispatch lane to the pixel and sample it traces. Samples vary
// fastest so that all samples of a pixel land in adjacent lanes.
func (wt WorkTile) Lane(lane int) (x, y, sample int) {
	pixel := lane / wt.NumSamples
	sample = wt.StartSample + lane%wt.NumSamples
	x = wt.X + pixel%wt.W
	y = wt.Y + pixel/wt.W
	return x, y, sample
}
