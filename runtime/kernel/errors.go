package kernel

import "errors"

var (
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrDuplicateID       = errors.New("duplicate thread id")
	ErrLimitExceeded     = errors.New("memory limit exceeded")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrNoChildren        = errors.New("no children")
	ErrKilled            = errors.New("killed")
)
