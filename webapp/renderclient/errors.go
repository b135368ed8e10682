package renderclient

import (
	"errors"
	"fmt"
)

/**
the overall wait deadline passed before the render service reported a terminal status.
The render itself may still finish; nobody is watching it any more.
*/
var ErrWaitTimeout = errors.New("timed out waiting for the render to finish")

/**
the render service no longer knows the render id we are waiting on
*/
var ErrRenderUnknown = errors.New("render service does not know this render")

/**
the render service would not accept the render, or could not hand it to CI
*/
type DispatchFailure struct {
	StatusCode int
	Message    string
}

func (e *DispatchFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("render dispatch failed: %s", e.Message)
	}
	return fmt.Sprintf("render dispatch failed (%d): %s", e.StatusCode, e.Message)
}

/**
the render ran and reported failure
*/
type RenderFailed struct {
	Message string
}

func (e *RenderFailed) Error() string {
	return fmt.Sprintf("render failed: %s", e.Message)
}
