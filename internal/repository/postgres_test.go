package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"sports-buddy-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// setupDB connects to TEST_DATABASE_URL and applies the schema. Tests are
// skipped when the variable is unset.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func newTestListing(players int) *models.Listing {
	return &models.Listing{
		ID:             uuid.New().String(),
		Sport:          "Football",
		City:           "Pune",
		Area:           "Kothrud",
		Skill:          "Beginner",
		Date:           "2099-01-01",
		Time:           "18:00",
		PlayersNeeded:  players,
		CreatedBy:      uuid.New().String(),
		CreatedByEmail: "owner@mail.com",
		Status:         models.StatusActive,
	}
}

func TestListingRepositoryJoin(t *testing.T) {
	db := setupDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	l := newTestListing(2)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	t.Cleanup(func() { repo.Delete(context.Background(), l.ID) })

	if l.CreatedAt.IsZero() {
		t.Error("expected server-assigned created_at")
	}

	if _, err := repo.AddParticipant(ctx, l.ID, "a"); err != nil {
		t.Fatalf("first join returned error: %v", err)
	}
	if _, err := repo.AddParticipant(ctx, l.ID, "a"); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("expected ErrAlreadyJoined, got %v", err)
	}
	if _, err := repo.AddParticipant(ctx, l.ID, "b"); err != nil {
		t.Fatalf("second join returned error: %v", err)
	}
	if _, err := repo.AddParticipant(ctx, l.ID, "c"); !errors.Is(err, ErrListingFull) {
		t.Errorf("expected ErrListingFull, got %v", err)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if len(got.Participants) != 2 {
		t.Errorf("unexpected participants %v", got.Participants)
	}
}

func TestListingRepositoryWatch(t *testing.T) {
	db := setupDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	w, err := repo.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	defer w.Close()

	l := newTestListing(4)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	t.Cleanup(func() { repo.Delete(context.Background(), l.ID) })

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Wait(waitCtx); err != nil {
		t.Fatalf("expected a change notification, got %v", err)
	}
}

func TestUserRepositoryAccounts(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	account := &models.Account{ID: uuid.New().String(), Email: uuid.New().String() + "@mail.com", PasswordHash: "x"}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	dup := &models.Account{ID: uuid.New().String(), Email: account.Email, PasswordHash: "y"}
	if err := repo.CreateAccount(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	ver, err := repo.BumpTokenVersion(ctx, account.ID)
	if err != nil || ver != 1 {
		t.Errorf("expected version 1, got %d (%v)", ver, err)
	}
	if _, err := repo.GetAccountByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
