package frame

import (
	"fmt"
	"moff.io/frame-bridge/pkg/errors"
)

var (
	// ErrTransportUnavailable is returned when posting without an embedded
	// surface or a reachable parent.
	ErrTransportUnavailable = errors.New("frame transport unavailable")
	// ErrLoadFailure matches every *LoadError.
	ErrLoadFailure = errors.New("frame failed to load")
	ErrClosed      = errors.New("frame closed")
)

// LoadError carries the cause the embedded surface failed to initialize with.
type LoadError struct {
	Src string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load frame %v: %v", e.Src, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailure
}
