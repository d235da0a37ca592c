package server

import "errors"

// Server-related errors.
var (
	// ErrInvalidPolicy indicates the policy ranges do not partition 1-10
	ErrInvalidPolicy = errors.New("policy ranges must partition draws 1-10 with no gaps or overlaps")

	// ErrInvalidWeights indicates action weights do not add up to 10
	ErrInvalidWeights = errors.New("policy weights must be non-negative and sum to 10")

	// ErrUnknownPreset indicates an unknown policy preset name
	ErrUnknownPreset = errors.New("unknown policy preset")

	// ErrUnknownAction indicates an unknown action name
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidMode indicates an unknown TCP serving mode
	ErrInvalidMode = errors.New("mode must be sequential or pool")

	// ErrInvalidCode indicates a destination unreachable code out of range
	ErrInvalidCode = errors.New("unreachable code must be between 0 and 15")

	// ErrThrottled indicates an error packet was suppressed by the rate limit
	ErrThrottled = errors.New("error packet rate limit exceeded")

	// ErrServerClosed indicates Serve was called on a closed server
	ErrServerClosed = errors.New("server closed")
)
