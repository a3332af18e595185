package types

import "errors"

// Error kinds used across the generator. Callers match with errors.Is;
// messages carry the failing stage, filename and address where known.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrInternal           = errors.New("internal error")
	ErrOutOfRange         = errors.New("out of range")
	ErrUnimplemented      = errors.New("unimplemented")
)
