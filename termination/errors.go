package termination

import "errors"

var (
	// ErrNilSubstrate is returned by New when no PGAS substrate is provided.
	ErrNilSubstrate = errors.New("termination: nil substrate")

	// ErrRepublished is returned when Publish is called more than once in a
	// run. Completion is single-shot; a second publication would double-fill
	// a counter or mailbox slot.
	ErrRepublished = errors.New("termination: local completion already published")

	// ErrUnknownVariant is returned by ParseVariant for unrecognized names.
	ErrUnknownVariant = errors.New("termination: unknown protocol variant")

	// ErrUnknownExitPolicy is returned by ParseExitPolicy for unrecognized names.
	ErrUnknownExitPolicy = errors.New("termination: unknown exit policy")
)
