package integrator

import (
	"fmt"

	"github.com/helios-pt/helios/tracer"
	"github.com/helios-pt/helios/tracer/device"
	"github.com/helios-pt/helios/tracer/native"
	"github.com/helios-pt/helios/types"
)

// Radiance constants used by the reference kernels. The actual shading and
// intersection math is pluggable; these kernels only exercise the full
// continuation protocol with a synthesized sky/light response.
var (
	skyColor   = types.XYZ(0.65, 0.75, 0.9)
	lightColor = types.XYZ(1.0, 0.93, 0.82)
)

const surfaceAlbedo = 0.8

// referenceKernels is the kernel set bound to one native queue. The path
// payload (pixel coords, sample id, bounce depth, throughput) lives in
// device buffers indexed by slot; the dispatch lane is the slot index.
type referenceKernels struct {
	state      *WavefrontState
	maxBounces int

	pixelX *native.Buffer
	pixelY *native.Buffer
	sample *native.Buffer
	bounce *native.Buffer

	beta       *native.Buffer
	shadowBeta *native.Buffer
}

// Register the reference kernel set on a native queue driving the given
// state table. The subsurface and volume kernels stay unregistered; the
// reference path never queues them.
func registerReferenceKernels(q *native.Queue, state *WavefrontState, maxBounces int) {
	capacity := state.Capacity()
	rk := &referenceKernels{
		state:      state,
		maxBounces: maxBounces,
		pixelX:     native.NewInt32Buffer("pathPixelX", capacity),
		pixelY:     native.NewInt32Buffer("pathPixelY", capacity),
		sample:     native.NewInt32Buffer("pathSample", capacity),
		bounce:     native.NewInt32Buffer("pathBounce", capacity),
		beta:       native.NewFloat32Buffer("pathThroughput", capacity),
		shadowBeta: native.NewFloat32Buffer("shadowThroughput", capacity),
	}

	q.Register(device.KernelInitFromCamera, rk.initFromCamera)
	q.Register(device.KernelIntersectClosest, rk.intersectClosest)
	q.Register(device.KernelIntersectShadow, rk.intersectShadow)
	q.Register(device.KernelShadeBackground, rk.shadeBackground)
	q.Register(device.KernelShadeSurface, rk.shadeSurface)
	q.Register(device.KernelShadeShadow, rk.shadeShadow)
}

// Decode the dispatch argument convention shared by all reference kernels:
// the work tile followed by the render buffer handle.
func dispatchArgs(args []interface{}) (WorkTile, *tracer.RenderBuffer, error) {
	if len(args) != 2 {
		return WorkTile{}, nil, fmt.Errorf("reference kernels: expected 2 dispatch args; got %d", len(args))
	}
	tile, ok := args[0].(WorkTile)
	if !ok {
		return WorkTile{}, nil, fmt.Errorf("reference kernels: dispatch arg 0 is not a work tile")
	}
	buf, ok := args[1].(*tracer.RenderBuffer)
	if !ok {
		return WorkTile{}, nil, fmt.Errorf("reference kernels: dispatch arg 1 is not a render buffer")
	}
	return tile, buf, nil
}

// Seed a fresh path into the slot for the tile lane's pixel/sample pair.
func (rk *referenceKernels) initFromCamera(lane int, args []interface{}) error {
	tile, _, err := dispatchArgs(args)
	if err != nil {
		return err
	}

	x, y, sample := tile.Lane(lane)
	rk.pixelX.Int32s()[lane] = int32(x)
	rk.pixelY.Int32s()[lane] = int32(y)
	rk.sample.Int32s()[lane] = int32(sample)
	rk.bounce.Int32s()[lane] = 0
	rk.beta.Float32s()[lane] = 1.0

	rk.state.Seed(lane)
	rk.state.PathInit(lane, device.KernelIntersectClosest)
	return nil
}

// Trace the next main path segment. Paths keep hitting surfaces until the
// bounce budget is spent, then escape to the background.
func (rk *referenceKernels) intersectClosest(lane int, args []interface{}) error {
	if _, _, err := dispatchArgs(args); err != nil {
		return err
	}
	if !rk.state.IsQueued(lane, device.KernelIntersectClosest) {
		return nil
	}

	if int(rk.bounce.Int32s()[lane]) < rk.maxBounces {
		rk.state.PathNext(lane, device.KernelIntersectClosest, device.KernelShadeSurface)
	} else {
		rk.state.PathNext(lane, device.KernelIntersectClosest, device.KernelShadeBackground)
	}
	return nil
}

// Shade a surface hit: attenuate the throughput, branch a next event
// estimation shadow ray and continue the bounce loop. A slot carries at
// most one shadow path in flight.
func (rk *referenceKernels) shadeSurface(lane int, args []interface{}) error {
	if _, _, err := dispatchArgs(args); err != nil {
		return err
	}
	if !rk.state.IsQueued(lane, device.KernelShadeSurface) {
		return nil
	}

	beta := rk.beta.Float32s()[lane] * surfaceAlbedo
	rk.beta.Float32s()[lane] = beta
	rk.bounce.Int32s()[lane]++

	if rk.state.IsShadowTerminated(lane) {
		rk.shadowBeta.Float32s()[lane] = beta
		rk.state.SeedShadow(lane)
		rk.state.ShadowPathInit(lane, device.KernelIntersectShadow)
	}

	rk.state.PathNext(lane, device.KernelShadeSurface, device.KernelIntersectClosest)
	return nil
}

// Shade a path that escaped the scene and retire it.
func (rk *referenceKernels) shadeBackground(lane int, args []interface{}) error {
	_, buf, err := dispatchArgs(args)
	if err != nil {
		return err
	}
	if !rk.state.IsQueued(lane, device.KernelShadeBackground) {
		return nil
	}

	x := int(rk.pixelX.Int32s()[lane])
	y := int(rk.pixelY.Int32s()[lane])
	contribution := skyColor.Mul(rk.beta.Float32s()[lane])
	buf.AddRadiance(x, y, contribution[0], contribution[1], contribution[2])
	buf.AddSampleCount(x, y, 1)

	rk.state.PathTerminate(lane, device.KernelShadeBackground)
	return nil
}

// Test shadow ray visibility. Occluded rays terminate the shadow path
// immediately; visible ones continue to the shadow shading kernel.
func (rk *referenceKernels) intersectShadow(lane int, args []interface{}) error {
	if _, _, err := dispatchArgs(args); err != nil {
		return err
	}
	if !rk.state.IsShadowQueued(lane, device.KernelIntersectShadow) {
		return nil
	}

	x := rk.pixelX.Int32s()[lane]
	y := rk.pixelY.Int32s()[lane]
	sample := rk.sample.Int32s()[lane]
	bounce := rk.bounce.Int32s()[lane]
	occluded := (x+y+sample+bounce)%4 == 0

	if occluded {
		rk.state.ShadowPathTerminate(lane, device.KernelIntersectShadow)
	} else {
		rk.state.ShadowPathNext(lane, device.KernelIntersectShadow, device.KernelShadeShadow)
	}
	return nil
}

// Accumulate the light contribution carried by an unoccluded shadow ray.
func (rk *referenceKernels) shadeShadow(lane int, args []interface{}) error {
	_, buf, err := dispatchArgs(args)
	if err != nil {
		return err
	}
	if !rk.state.IsShadowQueued(lane, device.KernelShadeShadow) {
		return nil
	}

	x := int(rk.pixelX.Int32s()[lane])
	y := int(rk.pixelY.Int32s()[lane])
	contribution := lightColor.Mul(rk.shadowBeta.Float32s()[lane] * 0.25)
	buf.AddRadiance(x, y, contribution[0], contribution[1], contribution[2])

	rk.state.ShadowPathTerminate(lane, device.KernelShadeShadow)
	return nil
}
