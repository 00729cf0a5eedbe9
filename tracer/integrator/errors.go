package integrator

import "errors"

var (
	ErrNoQueues         = errors.New("integrator: no device queues supplied")
	ErrCapacityMismatch = errors.New("integrator: all queue state tables must share the same capacity")
	ErrNotInitialized   = errors.New("integrator: InitExecution must be called before rendering")
)
