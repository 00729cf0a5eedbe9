package native

// Buffer is a device memory handle backed by host memory. Kernel functions
// resolve it to the backing slice through the typed accessors.
type Buffer struct {
	name string
	i32  []int32
	f32  []float32
}

// Allocate an int32 buffer with the given element count.
func NewInt32Buffer(name string, elements int) *Buffer {
	return &Buffer{
		name: name,
		i32:  make([]int32, elements),
	}
}

// Allocate a float32 buffer with the given element count.
func NewFloat32Buffer(name string, elements int) *Buffer {
	return &Buffer{
		name: name,
		f32:  make([]float32, elements),
	}
}

// Get buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Get allocated size in bytes.
func (b *Buffer) Size() int {
	return (len(b.i32) + len(b.f32)) * 4
}

// Release the allocation.
func (b *Buffer) Release() {
	b.i32 = nil
	b.f32 = nil
}

// Get the backing int32 storage.
func (b *Buffer) Int32s() []int32 {
	return b.i32
}

// Get the backing float32 storage.
func (b *Buffer) Float32s() []float32 {
	return b.f32
}
