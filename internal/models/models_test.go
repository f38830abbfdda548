package models

import "testing"

func TestCanonicalSport(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "football", want: "Football", ok: true},
		{in: "  MARTIAL arts ", want: "Martial Arts", ok: true},
		{in: "Quidditch", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := CanonicalSport(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CanonicalSport(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCanonicalSkill(t *testing.T) {
	if got, ok := CanonicalSkill("advanced"); !ok || got != "Advanced" {
		t.Errorf("CanonicalSkill(advanced) = %q, %v", got, ok)
	}
	if _, ok := CanonicalSkill("pro"); ok {
		t.Error("expected pro to be rejected")
	}
}

func TestListingCapacity(t *testing.T) {
	l := Listing{}
	if l.Capacity() != DefaultPlayersNeeded {
		t.Errorf("expected default capacity, got %d", l.Capacity())
	}

	l.PlayersNeeded = 2
	l.Participants = []string{"a"}
	if l.IsFull() {
		t.Error("listing with 1/2 should not be full")
	}
	l.Participants = append(l.Participants, "b")
	if !l.IsFull() {
		t.Error("listing with 2/2 should be full")
	}
	if !l.HasParticipant("b") || l.HasParticipant("c") {
		t.Error("HasParticipant returned wrong result")
	}
}

func TestListingCloneDoesNotShareParticipants(t *testing.T) {
	d := 1.5
	l := Listing{Participants: []string{"a"}, DurationHours: &d}
	c := l.Clone()
	c.Participants[0] = "z"
	*c.DurationHours = 3

	if l.Participants[0] != "a" {
		t.Error("clone shares participants slice")
	}
	if *l.DurationHours != 1.5 {
		t.Error("clone shares duration pointer")
	}
}

func TestDisplayNameFor(t *testing.T) {
	if got := DisplayNameFor(" Asha ", "asha@example.com"); got != "Asha" {
		t.Errorf("got %q", got)
	}
	if got := DisplayNameFor("", "ravi@example.com"); got != "ravi" {
		t.Errorf("got %q", got)
	}
}

func TestProfileHelpers(t *testing.T) {
	var nilProfile *UserProfile
	if nilProfile.IsAdmin() {
		t.Error("nil profile must not be admin")
	}

	p := &UserProfile{Role: RoleAdmin, Sports: []string{"Tennis"}}
	if !p.IsAdmin() {
		t.Error("expected admin")
	}
	if !p.HasSport("tennis") || p.HasSport("Yoga") {
		t.Error("HasSport returned wrong result")
	}
}
