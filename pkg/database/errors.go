package database

import "errors"

// Sentinel errors returned by the manager and allocator. Callers match with
// errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound             = errors.New("instance not found")
	ErrUnauthorized         = errors.New("instance does not belong to owner")
	ErrUnknownEngine        = errors.New("unknown engine")
	ErrUnknownVersion       = errors.New("unknown engine version")
	ErrResourceExhausted    = errors.New("no ports available in engine range")
	ErrCapacityExceeded     = errors.New("running instance limit reached")
	ErrImagePull            = errors.New("image pull failed")
	ErrContainerOperation   = errors.New("container operation failed")
	ErrUnsupportedOperation = errors.New("operation not supported for engine")
	ErrInvalidState         = errors.New("invalid state for operation")
)
