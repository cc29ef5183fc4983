package models

import "errors"

var (
	// ErrBucketIDMismatch is returned when a run record is applied to a
	// bucket whose id it does not map to.
	ErrBucketIDMismatch = errors.New("bucket id mismatch")

	// ErrInvalidRange is returned for filters whose start is after their end.
	ErrInvalidRange = errors.New("invalid range: start is after end")

	// ErrRecordTerminal is returned when patching a run record that already
	// reached a terminal status.
	ErrRecordTerminal = errors.New("run record already completed")

	// ErrRecordIncomplete is returned when an operation needs a completed
	// run record.
	ErrRecordIncomplete = errors.New("run record has no completion time")
)
