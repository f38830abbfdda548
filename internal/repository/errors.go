package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrListingFull is returned when a join would exceed players_needed
	ErrListingFull = errors.New("listing is full")
	// ErrAlreadyJoined is returned when the user is already a participant
	ErrAlreadyJoined = errors.New("already joined")
)

// Watcher wakes up once per change to the listings collection
type Watcher interface {
	// Wait blocks until the next change or until ctx is done
	Wait(ctx context.Context) error
	// Close releases the underlying connection
	Close()
}
