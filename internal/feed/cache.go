package feed

import (
	"sync"

	"sports-buddy-backend/internal/models"
)

// Cache holds the most recent snapshot. Each snapshot replaces the previous
// one wholesale; readers get copies.
type Cache struct {
	mu       sync.RWMutex
	listings []models.Listing
	index    map[string]int
	loaded   bool
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{index: map[string]int{}}
}

// Replace discards the cached list and rebuilds it from snap in order
func (c *Cache) Replace(snap Snapshot) {
	listings := make([]models.Listing, len(snap.Listings))
	index := make(map[string]int, len(snap.Listings))
	for i, l := range snap.Listings {
		listings[i] = l.Clone()
		index[l.ID] = i
	}

	c.mu.Lock()
	c.listings = listings
	c.index = index
	c.loaded = true
	c.mu.Unlock()
}

// Listings returns a copy of the cached list, newest first
func (c *Cache) Listings() []models.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Listing, len(c.listings))
	for i, l := range c.listings {
		out[i] = l.Clone()
	}
	return out
}

// Get returns the cached copy of one listing
func (c *Cache) Get(id string) (models.Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return models.Listing{}, false
	}
	return c.listings[i].Clone(), true
}

// ByCreator returns the cached listings created by userID
func (c *Cache) ByCreator(userID string) []models.Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []models.Listing{}
	for _, l := range c.listings {
		if l.CreatedBy == userID {
			out = append(out, l.Clone())
		}
	}
	return out
}

// Loaded reports whether at least one snapshot has arrived
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached listings
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}
