package integrator

import (
	"fmt"
	"sync/atomic"
)

// WorkScheduler deterministically partitions a pixel range times sample
// range into tiles no larger than a queue's path state capacity and hands
// them out to workers one at a time.
//
// Tiles are carved by filling the available capacity across samples first
// and then across pixels, so the fixed-size state table is fully utilized
// before a new pixel block begins. All sample chunks of a pixel block are
// issued before the next block; for a fixed (capacity, pixel range, sample
// range) triple the tile sequence is reproducible, which incremental render
// resume relies on.
type WorkScheduler struct {
	imageW, imageH int
	startSample    int
	numSamples     int

	// Carved tile dims.
	tileW, tileH   int
	samplesPerTile int

	// Tile grid dims.
	tilesX, tilesY int
	sampleChunks   int
	totalTiles     uint64

	// Tile cursor; the only mutable state shared between workers.
	nextTile uint64
}

// Seed the scheduler with a new render range. Must not be called while
// workers are pulling tiles.
func (ws *WorkScheduler) Reset(imageW, imageH, startSample, numSamples, maxPathStates int) {
	if imageW <= 0 || imageH <= 0 || numSamples <= 0 || maxPathStates <= 0 {
		panic(fmt.Sprintf("work scheduler: invalid render range %dx%d x %d samples, capacity %d",
			imageW, imageH, numSamples, maxPathStates))
	}

	ws.imageW, ws.imageH = imageW, imageH
	ws.startSample, ws.numSamples = startSample, numSamples

	ws.samplesPerTile = numSamples
	if ws.samplesPerTile > maxPathStates {
		ws.samplesPerTile = maxPathStates
	}

	// Leftover capacity widens the tile across pixels; tiles grow to
	// full-width row groups once the budget spans a whole row.
	pixelBudget := maxPathStates / ws.samplesPerTile
	if pixelBudget >= imageW {
		ws.tileW = imageW
		ws.tileH = pixelBudget / imageW
		if ws.tileH > imageH {
			ws.tileH = imageH
		}
	} else {
		ws.tileW = pixelBudget
		ws.tileH = 1
	}

	ws.tilesX = divUp(imageW, ws.tileW)
	ws.tilesY = divUp(imageH, ws.tileH)
	ws.sampleChunks = divUp(numSamples, ws.samplesPerTile)
	ws.totalTiles = uint64(ws.tilesX * ws.tilesY * ws.sampleChunks)

	atomic.StoreUint64(&ws.nextTile, 0)
}

// Get the total number of tiles the current range partitions into.
func (ws *WorkScheduler) TotalTiles() int {
	return int(ws.totalTiles)
}

// Pull the next tile. Safe to call concurrently from multiple workers; a
// single fetch-and-advance on the tile cursor is the only synchronization
// point. Returns false once the full pixel x sample space has been issued;
// never blocks and never re-issues a tile.
func (ws *WorkScheduler) NextTile() (WorkTile, bool) {
	index := atomic.AddUint64(&ws.nextTile, 1) - 1
	if index >= ws.totalTiles {
		return WorkTile{}, false
	}

	chunk := int(index) % ws.sampleChunks
	block := int(index) / ws.sampleChunks

	x := (block % ws.tilesX) * ws.tileW
	y := (block / ws.tilesX) * ws.tileH

	tile := WorkTile{
		X:           x,
		Y:           y,
		W:           ws.tileW,
		H:           ws.tileH,
		StartSample: ws.startSample + chunk*ws.samplesPerTile,
		NumSamples:  ws.samplesPerTile,
	}

	// Clamp edge tiles and the trailing sample chunk.
	if tile.X+tile.W > ws.imageW {
		tile.W = ws.imageW - tile.X
	}
	if tile.Y+tile.H > ws.imageH {
		tile.H = ws.imageH - tile.Y
	}
	if rest := ws.startSample + ws.numSamples - tile.StartSample; tile.NumSamples > rest {
		tile.NumSamples = rest
	}

	return tile, true
}

func divUp(a, b int) int {
	return (a + b - 1) / b
}
