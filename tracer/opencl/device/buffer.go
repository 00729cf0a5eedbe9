package device

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

// Buffer wraps a device memory allocation used as a kernel argument.
type Buffer struct {
	// Handle to opencl buffer.
	bufHandle cl.Mem

	// Associated Device.
	device *Device

	// A name for identifying the buffer.
	name string

	// Allocated size in bytes.
	size int
}

// Get buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Get allocated size in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Allocate device memory for the buffer. Any previous allocation is
// released first.
func (b *Buffer) Allocate(size int, flags cl.MemFlags) error {
	var errCode cl.ErrorCode

	b.Release()

	b.bufHandle = cl.CreateBuffer(
		*b.device.ctx,
		flags,
		cl.MemFlags(size),
		nil,
		(*int32)(&errCode),
	)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s of size %d (error: %s; code %d)", b.device.Name, b.name, size, ErrorName(errCode), errCode)
	}

	b.size = size
	return nil
}

// Write the contents of a slice to the device buffer starting at the given
// byte offset. Blocks until the copy has completed. The behavior of this
// method is undefined if a non-slice argument is passed or the argument
// does not use contiguous memory.
func (b *Buffer) WriteData(data interface{}, offset int) error {
	dataPtr, dataLen := sliceData(data)

	if offset+dataLen > b.size {
		return fmt.Errorf("opencl device (%s): insufficient buffer space (%d) in %s for copying data of length %d at offset %d", b.device.Name, b.size, b.name, dataLen, offset)
	}

	errCode := cl.EnqueueWriteBuffer(
		b.device.cmdQueue,
		b.bufHandle,
		cl.TRUE,
		uint64(offset),
		uint64(dataLen),
		dataPtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): error copying host data to device buffer %s (error: %s; code %d)", b.device.Name, b.name, ErrorName(errCode), errCode)
	}

	return nil
}

// Read size bytes from the device buffer at the given byte offset into the
// supplied host slice. If size is <= 0 the entire buffer is read. Blocks
// until the copy has completed.
func (b *Buffer) ReadData(offset, size int, hostBuffer interface{}) error {
	if size <= 0 {
		size = b.size
	}

	dataPtr, hostLen := sliceData(hostBuffer)
	if size > hostLen {
		return fmt.Errorf("opencl device (%s): host buffer too small (%d) for reading %d bytes from %s", b.device.Name, hostLen, size, b.name)
	}

	errCode := cl.EnqueueReadBuffer(
		b.device.cmdQueue,
		b.bufHandle,
		cl.TRUE,
		uint64(offset),
		uint64(size),
		dataPtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): error copying device data from %s to host buffer (error: %s; code %d)", b.device.Name, b.name, ErrorName(errCode), errCode)
	}

	return nil
}

// Release the device allocation.
func (b *Buffer) Release() {
	if b.bufHandle != nil {
		cl.ReleaseMemObject(b.bufHandle)
		b.bufHandle = nil
		b.size = 0
	}
}

// Get opencl buffer handle.
func (b *Buffer) Handle() cl.Mem {
	return b.bufHandle
}

// Given an interface{} containing a slice return a pointer to its data and
// its length in bytes.
func sliceData(data interface{}) (unsafe.Pointer, int) {
	reflVal := reflect.ValueOf(data)

	if reflVal.Kind() != reflect.Slice {
		panic("sliceData: this function only supports slices")
	}

	sliceElemCount := reflVal.Len()
	if sliceElemCount == 0 {
		panic("sliceData: supplied slice object is empty")
	}

	return unsafe.Pointer(reflVal.Index(0).Addr().Pointer()),
		sliceElemCount * int(reflect.TypeOf(data).Elem().Size())
}
