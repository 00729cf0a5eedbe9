package renderer

type Options struct {
	// Frame dims.
	FrameW int
	FrameH int

	// Number of samples traced per pixel in one render pass. Successive
	// passes accumulate; interactive mode uses small passes for
	// progressive refinement.
	SamplesPerPixel int

	// Number of indirect bounces.
	NumBounces int

	// Exposure for tonemapping.
	Exposure float32

	// Number of concurrent device queues to render with.
	NumQueues int

	// Path state capacity per queue; tiles are sized to fit it.
	MaxPathStates int
}
