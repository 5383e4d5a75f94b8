package cache

import "errors"

var (
	// ErrClosed is returned by writes after Shutdown or Close.
	ErrClosed = errors.New("cache: closed")

	// ErrKeyExists is returned by Put when the key is already resident.
	ErrKeyExists = errors.New("cache: key already exists")

	// ErrNoFactory is returned by GetOrCreate when Options.Factory is nil.
	ErrNoFactory = errors.New("cache: no Factory provided")

	// ErrInvalidFraction is returned by New when EvictFraction is outside (0, 1].
	ErrInvalidFraction = errors.New("cache: EvictFraction must be in (0, 1]")

	// ErrInvalidGhostEntries is returned by New when GhostEntries is negative.
	ErrInvalidGhostEntries = errors.New("cache: GhostEntries must not be negative")

	// ErrNotLocked is the panic value when a directory mutation runs without
	// the exclusive lock. It indicates a bug in the caller.
	ErrNotLocked = errors.New("cache: directory mutated without exclusive lock")

	// ErrTxDone is the panic value when a Tx is used after Update returned.
	ErrTxDone = errors.New("cache: transaction used outside Update")
)
