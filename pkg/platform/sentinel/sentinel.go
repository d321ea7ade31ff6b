package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and schedulers return
// these (optionally wrapped) so the pipeline can pick the failure posture of the
// stage it is running instead of inspecting driver-specific errors.
//
// - ErrUnavailable: the shared store or a collaborator could not be reached
// - ErrNotFound: the key or record does not exist
// - ErrUnparsable: a collaborator answered but the reply had no usable structure
// - ErrQueueFull: the run scheduler is at capacity
// - ErrClosed: the component has been shut down
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrUnparsable  = errors.New("unparsable")
	ErrQueueFull   = errors.New("queue full")
	ErrClosed      = errors.New("closed")
)
