package device

import "fmt"

// Kernel identifies one of the wavefront integrator kernels. Identifiers are
// dense and stable for the lifetime of a render session; the path state
// bitmasks, the queued-kernel counters and every queue's dispatch table are
// all indexed by them.
type Kernel uint8

const (
	// Path seeding kernel; writes fresh path states into free slots.
	KernelInitFromCamera Kernel = iota
	// Intersection kernels.
	KernelIntersectClosest
	KernelIntersectShadow
	KernelIntersectSubsurface
	// Shading kernels.
	KernelShadeBackground
	KernelShadeSurface
	KernelShadeVolume
	KernelShadeShadow
	//
	KernelCount
)

// Implements Stringer; map kernel id to the kernel name as used by the
// device dispatch tables.
func (k Kernel) String() string {
	switch k {
	case KernelInitFromCamera:
		return "initFromCamera"
	case KernelIntersectClosest:
		return "intersectClosest"
	case KernelIntersectShadow:
		return "intersectShadow"
	case KernelIntersectSubsurface:
		return "intersectSubsurface"
	case KernelShadeBackground:
		return "shadeBackground"
	case KernelShadeSurface:
		return "shadeSurface"
	case KernelShadeVolume:
		return "shadeVolume"
	case KernelShadeShadow:
		return "shadeShadow"
	default:
		panic(fmt.Sprintf("device: unsupported kernel id: %d", uint8(k)))
	}
}
