package provider

import "moff.io/frame-bridge/pkg/errors"

// ErrRemote matches every *RemoteError.
var ErrRemote = errors.New("frame remote error")

// RemoteError is an explicit *_ERROR reply. Message is passed through as sent.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
