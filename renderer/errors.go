package renderer

import "errors"

var (
	ErrInvalidFrameDims = errors.New("renderer: invalid frame dimensions")
	ErrInterrupted      = errors.New("renderer: interrupted while rendering")
)
