package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: no connection, link or DID record matches the key
//   - ErrConflict: a compare-and-swap lost against a concurrent writer
//   - ErrAlreadyUsed: a uniqueness constraint rejected the write (user or DID already linked)
//   - ErrInvalidState: the record is in the wrong state for the operation
//   - ErrUnavailable: a backing service (agent, redis, kafka) cannot be reached
//   - ErrDuplicate: a webhook delivery was already processed
//
// Validation failures belong in pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrDuplicate    = errors.New("duplicate delivery")
)
