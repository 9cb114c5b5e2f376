package repository

import "errors"

var (
	// ErrJobNotFound covers both "no such job" and "job owned by someone
	// else". Callers must not be able to tell the two apart.
	ErrJobNotFound = errors.New("job not found")

	// ErrMalformedRecord is returned by the redis backend when stored fields
	// cannot be parsed. The partial record accompanying it carries whatever
	// was readable so handlers can degrade instead of failing.
	ErrMalformedRecord = errors.New("job record is malformed")

	// ErrTerminalState rejects updates to records that already completed or
	// errored.
	ErrTerminalState = errors.New("job is in a terminal state")

	ErrCVNotFound = errors.New("cv document not found")
)
