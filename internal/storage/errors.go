package storage

import "errors"

// Sentinel errors returned by Repository implementations. Handlers map these
// onto HTTP statuses; everything else is treated as an internal failure.
var (
	// ErrNotFound reports that the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate reports a unique-index violation (email or phone).
	ErrDuplicate = errors.New("duplicate value for unique field")

	// ErrInvalidCredentials reports a password mismatch on login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadySubscribed reports a repeated subscribe for the same pair.
	// Subscription is rejecting-idempotent: the repeat is an error, not a
	// silent no-op.
	ErrAlreadySubscribed = errors.New("already subscribed to this channel")

	// ErrSelfSubscribe reports an attempt to subscribe to one's own channel.
	ErrSelfSubscribe = errors.New("cannot subscribe to your own channel")
)
