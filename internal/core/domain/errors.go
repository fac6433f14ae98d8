package domain

import "errors"

var (
	// ErrChainUnavailable is returned when the RPC endpoint cannot be reached
	// at startup. Fatal: the process must not start without a chain.
	ErrChainUnavailable = errors.New("chain endpoint unavailable")

	// ErrConfigInvalid is returned when startup validation of the supplied
	// configuration fails. Fatal.
	ErrConfigInvalid = errors.New("invalid configuration")
)
