package accesslist

import "errors"

// Domain errors.
var (
	// ErrInvalidInput is returned for malformed IPs or non-positive
	// durations. Rejected synchronously, never partially applied.
	ErrInvalidInput = errors.New("accesslist: invalid input")

	// ErrEntryNotFound is returned when removing an entry that does not
	// exist or has already expired.
	ErrEntryNotFound = errors.New("accesslist: entry not found")

	// ErrDenyPrecedence is returned when inserting an allow entry for an
	// IP that holds an active deny entry. Deny wins on conflict.
	ErrDenyPrecedence = errors.New("accesslist: ip has an active deny entry")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("accesslist: store unavailable")
)
