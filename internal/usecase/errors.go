package usecase

import "errors"

var (
	// ErrPageError means there is no usable page to analyze.
	ErrPageError = errors.New("page unavailable for analysis")
	// ErrHostBlocked is returned while this machine is under a hostname block.
	ErrHostBlocked = errors.New("hostname is blocked")
	// ErrAccountBlocked is returned when the current page shows a critical
	// account-level error.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrInvalidQuery marks malformed element queries.
	ErrInvalidQuery = errors.New("invalid element query")
)
