package integrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/helios-pt/helios/log"
	"github.com/helios-pt/helios/tracer"
	"github.com/helios-pt/helios/tracer/device"
	"github.com/helios-pt/helios/tracer/native"
)

// Tracer session configuration. Values are supplied by the surrounding
// renderer at construction time.
type Config struct {
	// Number of concurrent device queues to render with.
	NumQueues int

	// Path slots per queue state table.
	MaxPathStates int

	// Number of indirect bounces per path.
	MaxBounces int
}

const (
	defaultMaxPathStates = 4096
	defaultMaxBounces    = 4
)

// QueueState pairs one device command queue with the path state table its
// kernels execute against.
type QueueState struct {
	Queue device.Queue
	State *WavefrontState
}

// TiledPathTracer schedules path tracing work to its device queues in tiles
// sized to match the queues' path state capacity. One worker drives each
// queue; the work scheduler's tile cursor is the only shared mutable state
// between them.
type TiledPathTracer struct {
	logger log.Logger

	id     string
	queues []QueueState

	scheduler WorkScheduler
	stats     tracer.Stats

	initialized bool
	closeFn     func()
}

// Create a tiled tracer over the given queue/state pairs.
func NewTiled(id string, queues []QueueState) (*TiledPathTracer, error) {
	if len(queues) == 0 {
		return nil, ErrNoQueues
	}

	capacity := queues[0].State.Capacity()
	for _, pair := range queues[1:] {
		if pair.State.Capacity() != capacity {
			return nil, ErrCapacityMismatch
		}
	}

	return &TiledPathTracer{
		logger: log.New(id),
		id:     id,
		queues: queues,
	}, nil
}

// Create a tiled tracer backed by the native device, with the reference
// kernel set registered on every queue.
func NewNative(id string, cfg Config) (*TiledPathTracer, error) {
	if cfg.NumQueues <= 0 {
		cfg.NumQueues = 1
	}
	if cfg.MaxPathStates <= 0 {
		cfg.MaxPathStates = defaultMaxPathStates
	}
	if cfg.MaxBounces <= 0 {
		cfg.MaxBounces = defaultMaxBounces
	}

	dev, err := native.NewDevice(cfg.NumQueues)
	if err != nil {
		return nil, err
	}

	queues := make([]QueueState, cfg.NumQueues)
	for i := range queues {
		q, err := dev.NewQueue()
		if err != nil {
			dev.Close()
			return nil, err
		}

		state := NewWavefrontState(cfg.MaxPathStates)
		registerReferenceKernels(q, state, cfg.MaxBounces)
		queues[i] = QueueState{Queue: q, State: state}
	}

	tr, err := NewTiled(id, queues)
	if err != nil {
		dev.Close()
		return nil, err
	}
	tr.closeFn = dev.Close

	return tr, nil
}

// Get tracer id.
func (t *TiledPathTracer) Id() string {
	return t.id
}

// Initialize kernel execution on every owned queue. Runs each queue's
// InitExecution exactly once regardless of how often it is called.
func (t *TiledPathTracer) InitExecution() error {
	if t.initialized {
		return nil
	}

	for i := range t.queues {
		if err := t.queues[i].Queue.InitExecution(); err != nil {
			return err
		}
	}

	t.initialized = true
	return nil
}

// Retrieve statistics for the last RenderSamples call.
func (t *TiledPathTracer) Stats() *tracer.Stats {
	return &t.stats
}

// Shutdown and cleanup tracer.
func (t *TiledPathTracer) Close() {
	if t.closeFn != nil {
		t.closeFn()
		t.closeFn = nil
	}
}

// Render samplesNum samples starting at startSample for every pixel covered
// by the render buffer. One worker is spawned per queue; workers pull tiles
// until the scheduler is exhausted and every queue is synchronized before
// return. A device failure surfaces in the aggregate error; the failed tile
// contributes nothing to the buffer while results from every completed tile
// are retained, including tiles covering the same pixels.
func (t *TiledPathTracer) RenderSamples(buf *tracer.RenderBuffer, startSample, samplesNum int) error {
	if !t.initialized {
		return ErrNotInitialized
	}

	params := buf.Params()
	capacity := t.queues[0].State.Capacity()
	t.scheduler.Reset(params.Width, params.Height, startSample, samplesNum, capacity)

	t.stats = tracer.Stats{
		Queues: make([]tracer.QueueStat, len(t.queues)),
		Tiles:  uint32(t.scheduler.TotalTiles()),
	}
	t.logger.Debugf("rendering %dx%d x %d samples as %d tiles on %d queues",
		params.Width, params.Height, samplesNum, t.scheduler.TotalTiles(), len(t.queues))

	start := time.Now()
	var wg sync.WaitGroup
	workerErrs := make([]error, len(t.queues))
	for i := range t.queues {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			workerErrs[worker] = t.renderWorker(worker, buf)
		}(i)
	}
	wg.Wait()
	t.stats.RenderTime = time.Since(start)

	return errors.Join(workerErrs...)
}

// Worker run function: pull tiles until the scheduler is exhausted and
// drive the full kernel pipeline for each one on this worker's queue.
func (t *TiledPathTracer) renderWorker(worker int, buf *tracer.RenderBuffer) error {
	pair := &t.queues[worker]
	stat := &t.stats.Queues[worker]
	stat.Id = fmt.Sprintf("%s/queue-%d", t.id, worker)

	start := time.Now()
	var workerErr error
	for {
		tile, ok := t.scheduler.NextTile()
		if !ok {
			break
		}

		if err := t.renderTile(pair, tile, buf); err != nil {
			t.logger.Errorf("queue %d: tile (%d,%d %dx%d samples %d+%d) failed: %v",
				worker, tile.X, tile.Y, tile.W, tile.H, tile.StartSample, tile.NumSamples, err)
			stat.FailedTiles++
			workerErr = errors.Join(workerErr, err)
			continue
		}
		stat.Tiles++
	}
	stat.RenderTime = time.Since(start)

	if err := pair.Queue.Synchronize(); err != nil {
		workerErr = errors.Join(workerErr, err)
	}
	return workerErr
}

// Core path tracing routine: seed path slots from the tile's pixel/sample
// coordinates, then keep dispatching the most queued kernel until the
// queued-kernel counters drain. Each dispatch is synchronized before the
// counters are consulted again.
//
// Kernels accumulate into a tile-local staging buffer which is merged into
// the shared buffer only once the whole batch succeeds. Sample chunks of
// the same pixel block travel as separate tiles, so a failed chunk must not
// disturb radiance already merged by its completed siblings.
func (t *TiledPathTracer) renderTile(pair *QueueState, tile WorkTile, buf *tracer.RenderBuffer) error {
	state := pair.State
	queue := pair.Queue

	staging := tracer.NewRenderBuffer(tracer.BufferParams{
		Width:  tile.W,
		Height: tile.H,
		FullX:  tile.X,
		FullY:  tile.Y,
	})

	state.Reset()
	if err := t.dispatch(queue, device.KernelInitFromCamera, tile.WorkSize(), tile, staging); err != nil {
		return err
	}

	for {
		kernel, queued := state.NextDispatch()
		if queued == 0 {
			break
		}

		if err := t.dispatch(queue, kernel, state.Capacity(), tile, staging); err != nil {
			return err
		}
	}

	buf.Merge(staging)
	return nil
}

func (t *TiledPathTracer) dispatch(queue device.Queue, kernel device.Kernel, workSize int, tile WorkTile, buf *tracer.RenderBuffer) error {
	if err := queue.Enqueue(kernel, workSize, tile, buf); err != nil {
		queue.Synchronize()
		return err
	}
	return queue.Synchronize()
}
