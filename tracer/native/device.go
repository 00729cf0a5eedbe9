// Package native provides a host-memory execution context that runs kernels
// as Go functions. It is the reference wavefront device: queues execute
// registered kernel functions lane-parallel on the local CPU and device
// buffers wrap plain host slices.
package native

import "fmt"

// Device is a collection of concurrent host command queues.
type Device struct {
	name             string
	concurrentQueues int
	numQueuesCreated int
}

// Create a new host device exposing the given number of concurrent queues.
func NewDevice(concurrentQueues int) (*Device, error) {
	if concurrentQueues <= 0 {
		return nil, fmt.Errorf("native device: invalid concurrent queue count %d", concurrentQueues)
	}

	return &Device{
		name:             "native",
		concurrentQueues: concurrentQueues,
	}, nil
}

// Get device name.
func (d *Device) Name() string {
	return d.name
}

// Get the number of command queues this device can execute concurrently.
func (d *Device) ConcurrentQueues() int {
	return d.concurrentQueues
}

// Create a new command queue with an empty dispatch table.
func (d *Device) NewQueue() (*Queue, error) {
	if d.numQueuesCreated == d.concurrentQueues {
		return nil, fmt.Errorf("native device: all %d concurrent queues already created", d.concurrentQueues)
	}
	d.numQueuesCreated++

	return &Queue{
		name: fmt.Sprintf("%s/queue-%d", d.name, d.numQueuesCreated-1),
	}, nil
}

// Shut down the device.
func (d *Device) Close() {
}
