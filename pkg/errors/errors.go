package errors

import "errors"

var (
	ErrUnknownModel     = errors.New("unknown model type")
	ErrUnknownOptimizer = errors.New("unknown optimizer type")
	ErrUnknownScheduler = errors.New("unknown scheduler type")
	ErrUnknownPolicy    = errors.New("unknown trust policy")
	ErrUnknownBackend   = errors.New("unknown execution backend")
	ErrShardTooShort    = errors.New("shard has fewer tokens than one training window")
	ErrMalformedShard   = errors.New("malformed token shard")
	ErrNonFiniteLoss    = errors.New("non-finite loss")
	ErrInvalidConfig    = errors.New("invalid run configuration")
	ErrRunCompleted     = errors.New("run already completed")
)
