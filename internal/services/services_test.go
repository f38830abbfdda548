package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sports-buddy-backend/internal/feed"
	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository/memory"
	"sports-buddy-backend/internal/session"
)

var (
	testZone = time.FixedZone("IST", 5*3600+1800)
	testNow  = time.Date(2026, 6, 1, 10, 0, 0, 0, testZone)
)

type fixture struct {
	store    *memory.Store
	cache    *feed.Cache
	pusher   *fakePusher
	listings *ListingService
	admin    *AdminService
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.SetClock(func() time.Time { return testNow })
	cache := feed.NewCache()
	pusher := &fakePusher{}

	listings := NewListingService(store, store, NewNotifier(store, store, pusher), cache, testZone)
	listings.SetClock(func() time.Time { return testNow })
	admin := NewAdminService(store, store, testZone)
	admin.SetClock(func() time.Time { return testNow })

	return &fixture{store: store, cache: cache, pusher: pusher, listings: listings, admin: admin}
}

// refresh copies the store into the cache, standing in for the live feed
func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	all, err := f.store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	f.cache.Replace(feed.Snapshot{Listings: all, At: testNow})
}

func userSession(id, email string) session.State {
	return session.NewState(
		session.Identity{UserID: id, Email: email},
		&models.UserProfile{ID: id, Email: email, Role: models.RoleUser},
	)
}

func adminSession(id string) session.State {
	return session.NewState(
		session.Identity{UserID: id, Email: id + "@admin.io"},
		&models.UserProfile{ID: id, Role: models.RoleAdmin},
	)
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

type fakePusher struct {
	mu     sync.Mutex
	tokens []string
	bodies []string
	err    error
}

func (p *fakePusher) Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, deviceToken)
	p.bodies = append(p.bodies, body)
	return p.err
}

func validRequest() CreateListingRequest {
	players := 10
	return CreateListingRequest{
		Sport:         "Football",
		City:          "Pune",
		Area:          "Kothrud",
		Skill:         "Beginner",
		Date:          "2026-06-02",
		Time:          "18:30",
		Description:   "Friendly 5-a-side",
		PlayersNeeded: &players,
	}
}

func TestErrorNoticeTones(t *testing.T) {
	tests := []struct {
		kind Kind
		want Tone
	}{
		{KindAlreadyJoined, ToneInfo},
		{KindCapacity, ToneWarning},
		{KindValidation, ToneWarning},
		{KindBackend, ToneError},
		{KindConnectivity, ToneError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := newError(tt.kind, "t", "m").Notice().Tone; got != tt.want {
				t.Errorf("expected tone %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRemoteErrorClassification(t *testing.T) {
	if e := remoteError(context.DeadlineExceeded, "X", "y"); e.Kind != KindConnectivity || e.Title != "Connection Error" {
		t.Errorf("deadline should be a connectivity error, got %+v", e)
	}
	if e := remoteError(errors.New("permission denied"), "Join Failed", "Could not join match"); e.Kind != KindBackend || e.Title != "Join Failed" {
		t.Errorf("unexpected classification %+v", e)
	}
	if n := NoticeFor(errors.New("boom")); n.Tone != ToneError {
		t.Errorf("unclassified errors should use the error tone, got %s", n.Tone)
	}
}

func anonymous() session.State {
	return session.Anonymous()
}
