package renderer

import "testing"

func TestNeedMoreSamples(t *testing.T) {
	type spec struct {
		accumulated int
		target      int
		expNeed     bool
	}

	specs := []spec{
		// A zero target keeps refining indefinitely
		{0, 0, true},
		{1000, 0, true},
		{0, 16, true},
		{15, 16, true},
		{16, 16, false},
		{17, 16, false},
	}

	for index, s := range specs {
		if need := needMoreSamples(s.accumulated, s.target); need != s.expNeed {
			t.Fatalf("[spec %d] expected needMoreSamples(%d, %d) to be %t; got %t", index, s.accumulated, s.target, need, s.expNeed)
		}
	}
}
