package voice

import (
	"testing"

	"github.com/noveltoon/backend/internal/types"
)

func character(gender types.Gender, stage types.AgeStage) types.Character {
	return types.Character{
		Name:       "someone",
		Appearance: types.Appearance{Gender: gender, AgeStage: stage},
	}
}

func TestAssignIsWriteOnce(t *testing.T) {
	reg := NewRegistry(nil, "narrator-id", "default-id")

	first := reg.Assign("Alice", character(types.GenderFemale, types.AgeYouth))
	// A later call with contradicting appearance must not change the pick.
	second := reg.Assign("Alice", character(types.GenderMale, types.AgeElder))
	if first != second {
		t.Fatalf("assignment changed within job: %q then %q", first, second)
	}
}

func TestAssignMatchesGenderAndAgeStage(t *testing.T) {
	reg := NewRegistry(nil, "narrator-id", "default-id")

	id := reg.Assign("Bob", character(types.GenderMale, types.AgeChild))
	found := false
	for _, e := range DefaultCatalog() {
		if e.ID == id {
			if e.Gender != types.GenderMale || e.AgeStage != types.AgeChild {
				t.Fatalf("voice %s is %s/%s, want male/child", id, e.Gender, e.AgeStage)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("assigned voice %s not in catalog", id)
	}
}

func TestAssignIsStableAcrossJobs(t *testing.T) {
	a := NewRegistry(nil, "n", "d").Assign("Carol", character(types.GenderFemale, types.AgeAdult))
	b := NewRegistry(nil, "n", "d").Assign("Carol", character(types.GenderFemale, types.AgeAdult))
	if a != b {
		t.Fatalf("same speaker hashed to different voices: %q vs %q", a, b)
	}
}

func TestAssignFallsBackToGenderOnly(t *testing.T) {
	// The default catalog carries no male elder entries.
	reg := NewRegistry(nil, "narrator-id", "default-id")
	id := reg.Assign("Elder", character(types.GenderMale, types.AgeElder))

	for _, e := range DefaultCatalog() {
		if e.ID == id {
			if e.Gender != types.GenderMale {
				t.Fatalf("gender fallback picked %s voice", e.Gender)
			}
			return
		}
	}
	t.Fatalf("fallback voice %s not in catalog", id)
}

func TestAssignDefaultWhenNothingMatches(t *testing.T) {
	catalog := []Entry{{ID: "only-male", Gender: types.GenderMale, AgeStage: types.AgeAdult}}
	reg := NewRegistry(catalog, "narrator-id", "default-id")

	if id := reg.Assign("Dana", character(types.GenderFemale, types.AgeAdult)); id != "default-id" {
		t.Fatalf("expected default voice, got %q", id)
	}
}

func TestNumericAgeBeatsDeclaredStage(t *testing.T) {
	reg := NewRegistry(nil, "n", "d")
	ch := types.Character{
		Name:       "kid",
		Appearance: types.Appearance{Gender: types.GenderFemale, Age: 8, AgeStage: types.AgeAdult},
	}
	id := reg.Assign("kid", ch)
	for _, e := range DefaultCatalog() {
		if e.ID == id && e.AgeStage != types.AgeChild {
			t.Fatalf("age 8 resolved to %s voice, want child", e.AgeStage)
		}
	}
}

func TestNarrationVoiceIndependentOfAssignments(t *testing.T) {
	reg := NewRegistry(nil, "narrator-id", "default-id")
	reg.Assign("Alice", character(types.GenderFemale, types.AgeAdult))
	if got := reg.NarrationVoice(); got != "narrator-id" {
		t.Fatalf("NarrationVoice() = %q", got)
	}
}

func TestDefaultCatalogShape(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != 28 {
		t.Fatalf("catalog has %d entries, want 28", len(catalog))
	}
	seen := map[string]bool{}
	for _, e := range catalog {
		if seen[e.ID] {
			t.Fatalf("duplicate voice id %s", e.ID)
		}
		seen[e.ID] = true
		if e.Gender != types.GenderMale && e.Gender != types.GenderFemale {
			t.Fatalf("voice %s has gender %q", e.ID, e.Gender)
		}
	}
}
