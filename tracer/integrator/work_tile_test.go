package integrator

import "testing"

func TestWorkTileWorkSize(t *testing.T) {
	tile := WorkTile{X: 0, Y: 0, W: 4, H: 2, StartSample: 0, NumSamples: 3}
	if tile.WorkSize() != 24 {
		t.Fatalf("expected work size to be 24; got %d", tile.WorkSize())
	}
}

func TestWorkTileLaneMapping(t *testing.T) {
	type spec struct {
		lane      int
		expX      int
		expY      int
		expSample int
	}

	// Samples vary fastest so adjacent lanes share a pixel
	tile := WorkTile{X: 2, Y: 3, W: 2, H: 2, StartSample: 5, NumSamples: 3}
	specs := []spec{
		{0, 2, 3, 5},
		{1, 2, 3, 6},
		{2, 2, 3, 7},
		{3, 3, 3, 5},
		{5, 3, 3, 7},
		{6, 2, 4, 5},
		{11, 3, 4, 7},
	}

	for index, s := range specs {
		x, y, sample := tile.Lane(s.lane)
		if x != s.expX || y != s.expY || sample != s.expSample {
			t.Fatalf("[spec %d] expected lane %d to map to (%d,%d) sample %d; got (%d,%d) sample %d",
				index, s.lane, s.expX, s.expY, s.expSample, x, y, sample)
		}
	}
}

func TestWorkTileLaneCoversTile(t *testing.T) {
	tile := WorkTile{X: 1, Y: 2, W: 3, H: 2, StartSample: 4, NumSamples: 2}

	seen := make(map[[3]int]int)
	for lane := 0; lane < tile.WorkSize(); lane++ {
		x, y, sample := tile.Lane(lane)
		if x < tile.X || x >= tile.X+tile.W || y < tile.Y || y >= tile.Y+tile.H {
			t.Fatalf("lane %d mapped outside the tile: (%d,%d)", lane, x, y)
		}
		if sample < tile.StartSample || sample >= tile.StartSample+tile.NumSamples {
			t.Fatalf("lane %d mapped outside the sample range: %d", lane, sample)
		}
		seen[[3]int{x, y, sample}]++
	}

	if len(seen) != tile.WorkSize() {
		t.Fatalf("expected %d distinct (pixel, sample) pairs; got %d", tile.WorkSize(), len(seen))
	}
}
