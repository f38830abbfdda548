package feed

import (
	"sync"

	"sports-buddy-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

// View renders the feed whenever it changes
type View interface {
	OnSnapshot(snap Snapshot)
	OnError(err error)
}

// Coordinator is the single consumer of a Stream. It refreshes the cache and
// then fans each snapshot out to every registered view.
type Coordinator struct {
	cache *Cache

	mu    sync.RWMutex
	views []View
	err   error
}

// NewCoordinator creates a coordinator that keeps cache current
func NewCoordinator(cache *Cache) *Coordinator {
	return &Coordinator{cache: cache}
}

// Register adds a view; it receives every snapshot from then on
func (c *Coordinator) Register(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, v)
}

// Err returns the error that ended the stream, if any
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Run consumes stream until it ends. It returns the error that ended it, or
// nil when the stream was closed.
func (c *Coordinator) Run(stream *Stream) error {
	for ev := range stream.Events() {
		if ev.Err != nil {
			c.mu.Lock()
			c.err = ev.Err
			c.mu.Unlock()
			for _, v := range c.snapshotViews() {
				c.safely(func() { v.OnError(ev.Err) })
			}
			return ev.Err
		}

		c.cache.Replace(*ev.Snapshot)
		metrics.FeedSnapshots.Inc()
		metrics.FeedListings.Set(float64(len(ev.Snapshot.Listings)))
		log.Debug().Int("listings", len(ev.Snapshot.Listings)).Msg("Listing snapshot received")

		for _, v := range c.snapshotViews() {
			c.safely(func() { v.OnSnapshot(*ev.Snapshot) })
		}
	}
	return nil
}

func (c *Coordinator) snapshotViews() []View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]View(nil), c.views...)
}

// safely keeps one misbehaving view from stopping the feed for the others
func (c *Coordinator) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Feed view panicked")
		}
	}()
	fn()
}
