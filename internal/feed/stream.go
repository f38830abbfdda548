// Package feed keeps an in-memory copy of the listing collection in sync with
// the store and fans every change out to the views that render it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// ErrDisconnected wraps every failure that ends a stream
var ErrDisconnected = errors.New("listing feed disconnected")

// Source is the store the stream reads from
type Source interface {
	ListAll(ctx context.Context) ([]models.Listing, error)
	Watch(ctx context.Context) (repository.Watcher, error)
}

// Snapshot is a full-state delivery of the listing collection, newest first
type Snapshot struct {
	Listings []models.Listing
	At       time.Time
}

// Event is one item of a stream: a snapshot or the error that ended it
type Event struct {
	Snapshot *Snapshot
	Err      error
}

// Stream is a lazy, cancellable sequence of snapshots. It starts when Open is
// called, delivers a snapshot after every change, and ends after Close or the
// first error. A stream cannot be restarted.
type Stream struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Open subscribes to source. The first event is the current collection.
func Open(ctx context.Context, source Source) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	watcher, err := source.Watch(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	s := &Stream{
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, source, watcher)
	return s, nil
}

// Events returns the channel of snapshots; it is closed when the stream ends
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close ends the stream and releases the live connection. It waits for the
// stream goroutine to exit and is safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the stream has fully stopped
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) run(ctx context.Context, source Source, watcher repository.Watcher) {
	defer close(s.done)
	defer close(s.events)
	defer watcher.Close()

	for {
		listings, err := source.ListAll(ctx)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		if !s.emit(ctx, Event{Snapshot: &Snapshot{Listings: listings, At: time.Now()}}) {
			return
		}

		if err := watcher.Wait(ctx); err != nil {
			s.fail(ctx, err)
			return
		}
	}
}

func (s *Stream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	log.Error().Err(err).Msg("Listing feed subscription failed")
	s.emit(ctx, Event{Err: fmt.Errorf("%w: %w", ErrDisconnected, err)})
}

func (s *Stream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
