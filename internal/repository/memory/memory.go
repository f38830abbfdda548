// Package memory is an in-process document store with the same semantics as the
// Postgres repositories. It backs the "memory" database driver and the tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository"
)

// Store keeps accounts, profiles, listings and notifications in memory
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	accounts      map[string]models.Account
	profiles      map[string]models.UserProfile
	listings      map[string]models.Listing
	notifications []models.Notification
	watchers      map[*Watcher]struct{}
	calls         int
}

// New creates an empty store using the wall clock for server timestamps
func New() *Store {
	return &Store{
		now:      time.Now,
		accounts: make(map[string]models.Account),
		profiles: make(map[string]models.UserProfile),
		listings: make(map[string]models.Listing),
		watchers: make(map[*Watcher]struct{}),
	}
}

// SetClock replaces the source of server-assigned timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Calls returns how many store operations have been issued so far
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) begin(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

// CreateAccount creates a new account
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrAlreadyExists
		}
	}
	account.CreatedAt = s.now()
	s.accounts[account.ID] = *account
	return nil
}

// GetAccountByEmail retrieves an account by email
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetAccountByID retrieves an account by ID
func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// BumpTokenVersion invalidates every token issued for the account
func (s *Store) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.TokenVersion++
	s.accounts[id] = a
	return a.TokenVersion, nil
}

// UpdatePassword stores a new password hash and invalidates issued tokens
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.TokenVersion++
	s.accounts[id] = a
	return nil
}

// GetProfile retrieves a profile by user ID
func (s *Store) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProfile(p), nil
}

// CreateProfileIfAbsent inserts the profile unless one exists for the ID
func (s *Store) CreateProfileIfAbsent(ctx context.Context, p *models.UserProfile) (bool, error) {
	if err := s.begin(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return false, nil
	}
	if p.Sports == nil {
		p.Sports = []string{}
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	p.CreatedAt = s.now()
	s.profiles[p.ID] = *cloneProfile(*p)
	return true, nil
}

// PutProfile stores p as is, replacing any existing profile. Used to seed roles.
func (s *Store) PutProfile(p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.ID] = *cloneProfile(p)
}

// AddSportInterest appends sport if absent and overwrites the location
func (s *Store) AddSportInterest(ctx context.Context, id, sport, location string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !p.HasSport(sport) {
		p.Sports = append(append([]string(nil), p.Sports...), sport)
	}
	p.Location = location
	s.profiles[id] = p
	return nil
}

// UpdatePushToken updates the push token for a user
func (s *Store) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PushToken = pushToken
	s.profiles[id] = p
	return nil
}

// UpdatePhotoURL records the uploaded profile photo location
func (s *Store) UpdatePhotoURL(ctx context.Context, id, photoURL string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PhotoURL = &photoURL
	s.profiles[id] = p
	return nil
}

// CountProfiles returns the number of user profiles
func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return len(s.profiles), nil
}

// Create inserts a listing; created_at is assigned by the store clock
func (s *Store) Create(ctx context.Context, l *models.Listing) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.listings[l.ID]; ok {
		return repository.ErrAlreadyExists
	}
	if l.Participants == nil {
		l.Participants = []string{}
	}
	l.CreatedAt = s.now()
	s.listings[l.ID] = l.Clone()
	s.notifyLocked()
	return nil
}

// Put stores l as is, keeping its CreatedAt. Used to seed fixtures.
func (s *Store) Put(l models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Participants == nil {
		l.Participants = []string{}
	}
	s.listings[l.ID] = l.Clone()
	s.notifyLocked()
}

// GetByID retrieves a listing by ID
func (s *Store) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := l.Clone()
	return &c, nil
}

// AddParticipant appends userID when it is absent and capacity allows,
// atomically with respect to other store operations.
func (s *Store) AddParticipant(ctx context.Context, id, userID string) (*models.Listing, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if l.HasParticipant(userID) {
		c := l.Clone()
		return &c, repository.ErrAlreadyJoined
	}
	if l.IsFull() {
		c := l.Clone()
		return &c, repository.ErrListingFull
	}
	l = l.Clone()
	l.Participants = append(l.Participants, userID)
	s.listings[id] = l
	s.notifyLocked()

	c := l.Clone()
	return &c, nil
}

// Delete deletes a listing by ID
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.listings, id)
	s.notifyLocked()
	return nil
}

// ListAll returns every listing, newest first
func (s *Store) ListAll(ctx context.Context) ([]models.Listing, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.sortedLocked(func(models.Listing) bool { return true }), nil
}

// ListByCreator returns listings created by userID, newest first
func (s *Store) ListByCreator(ctx context.Context, userID string) ([]models.Listing, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.sortedLocked(func(l models.Listing) bool { return l.CreatedBy == userID }), nil
}

func (s *Store) sortedLocked(keep func(models.Listing) bool) []models.Listing {
	out := []models.Listing{}
	for _, l := range s.listings {
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of listings
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return len(s.listings), nil
}

// CountCreatedBetween counts listings with from <= created_at < to
func (s *Store) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	total := 0
	for _, l := range s.listings {
		if !l.CreatedAt.Before(from) && l.CreatedAt.Before(to) {
			total++
		}
	}
	return total, nil
}

// CreateNotification appends a notification record
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	n.Timestamp = s.now()
	s.notifications = append(s.notifications, *n)
	return nil
}

// Notifications returns a copy of every stored notification
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

// Watch returns a watcher woken after every listing change
func (s *Store) Watch(ctx context.Context) (repository.Watcher, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	w := &Watcher{store: s, changes: make(chan struct{}, 1), failed: make(chan error, 1)}
	s.watchers[w] = struct{}{}
	return w, nil
}

func (s *Store) notifyLocked() {
	for w := range s.watchers {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	}
}

// Watcher delivers change wake-ups from a Store. Bursts of changes may be
// coalesced into a single wake-up.
type Watcher struct {
	store   *Store
	changes chan struct{}
	failed  chan error
}

// Wait blocks until the next change, a failure injected with Fail, or ctx is done
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case <-w.changes:
		return nil
	case err := <-w.failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail makes the next Wait return err, as a dropped connection would
func (w *Watcher) Fail(err error) {
	select {
	case w.failed <- err:
	default:
	}
}

// Close stops delivering changes to w
func (w *Watcher) Close() {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	delete(w.store.watchers, w)
}

// Watchers returns the currently open watchers
func (s *Store) Watchers() []*Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Watcher, 0, len(s.watchers))
	for w := range s.watchers {
		out = append(out, w)
	}
	return out
}

func cloneProfile(p models.UserProfile) *models.UserProfile {
	p.Sports = append([]string(nil), p.Sports...)
	if p.Sports == nil {
		p.Sports = []string{}
	}
	return &p
}
