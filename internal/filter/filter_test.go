package filter

import (
	"reflect"
	"testing"

	"sports-buddy-backend/internal/models"
)

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "1", Sport: "Football", Skill: "Beginner", City: "Pune", Area: "Kothrud"},
		{ID: "2", Sport: "Badminton", Skill: "Intermediate", City: "X", Area: "Y"},
		{ID: "3", Sport: "Tennis", Skill: "Advanced", City: "Mumbai", Area: "Bandra", Description: "Doubles on clay"},
		{ID: "4", Sport: "Football", Skill: "Advanced", City: "Pune", Area: "Baner"},
		{ID: "5", Sport: "Yoga", Skill: "Beginner", City: "Delhi", Area: "Saket"},
	}
}

func ids(listings []models.Listing) []string {
	out := []string{}
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []string
	}{
		{name: "default keeps all", state: Default(), want: []string{"1", "2", "3", "4", "5"}},
		{name: "sport", state: Default().WithSport("football"), want: []string{"1", "4"}},
		{name: "skill", state: Default().WithSkill("BEGINNER"), want: []string{"1", "5"}},
		{name: "sport and skill", state: Default().WithSport("Football").WithSkill("Advanced"), want: []string{"4"}},
		{name: "query on city", state: Default().WithQuery("pune"), want: []string{"1", "4"}},
		{name: "query on description", state: Default().WithQuery("  CLAY "), want: []string{"3"}},
		{name: "query on area", state: Default().WithQuery("ban"), want: []string{"3", "4"}},
		{name: "all three", state: Default().WithSport("Football").WithSkill("Beginner").WithQuery("koth"), want: []string{"1"}},
		{name: "no match", state: Default().WithSport("Cricket"), want: []string{}},
		{name: "empty choice means all", state: State{Sport: "", Skill: "", Query: "   "}, want: []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sampleListings(), tt.state))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyQuerySubstringScenario(t *testing.T) {
	listing := models.Listing{Sport: "Badminton", City: "X", Area: "Y", Skill: "Intermediate"}

	if !Matches(listing, Default().WithQuery("bad")) {
		t.Error(`query "bad" should match Badminton`)
	}
	if Matches(listing, Default().WithQuery("badminton!")) {
		t.Error(`query "badminton!" should not match`)
	}
}

func TestApplyPreservesOrderAndSubset(t *testing.T) {
	input := sampleListings()
	states := []State{
		Default(),
		Default().WithSport("Football"),
		Default().WithSkill("Advanced"),
		Default().WithQuery("e"),
		Default().WithSport("Tennis").WithQuery("doubles"),
	}

	for _, s := range states {
		out := Apply(input, s)
		// every output element appears in the input, in the same relative order
		pos := 0
		for _, l := range out {
			for pos < len(input) && input[pos].ID != l.ID {
				pos++
			}
			if pos == len(input) {
				t.Fatalf("state %+v: output %v is not an ordered subset", s, ids(out))
			}
			pos++

			if !Matches(l, s) {
				t.Errorf("state %+v: %s does not satisfy the filter", s, l.ID)
			}
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := Default().WithSport("football").WithQuery("pune")
	once := Apply(sampleListings(), s)
	twice := Apply(once, s)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("applying twice changed the result: %v vs %v", ids(once), ids(twice))
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	input := sampleListings()
	before := ids(input)
	Apply(input, Default().WithSport("Yoga"))
	if !reflect.DeepEqual(ids(input), before) {
		t.Error("input was modified")
	}
}

func TestStateSettersReturnCopies(t *testing.T) {
	base := Default()
	changed := base.WithSport("Tennis").WithSkill("Advanced").WithQuery("x")

	if base.Sport != All || base.Skill != All || base.Query != "" {
		t.Errorf("base state mutated: %+v", base)
	}
	if changed.IsDefault() {
		t.Error("changed state should not be default")
	}
	if !changed.Reset().IsDefault() {
		t.Error("Reset should return the default state")
	}
}
