package voice

import (
	"hash/fnv"
	"sync"

	"github.com/noveltoon/backend/internal/types"
)

// Registry is a per-job speaker → voice map. Assignments are write-once:
// the first assignment for a speaker wins for the rest of the job.
type Registry struct {
	mu          sync.Mutex
	catalog     []Entry
	assignments map[string]string
	narrator    string
	fallback    string
}

func NewRegistry(catalog []Entry, narrator, fallback string) *Registry {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	return &Registry{
		catalog:     catalog,
		assignments: make(map[string]string),
		narrator:    narrator,
		fallback:    fallback,
	}
}

// Assign resolves a speaker to a voice id, selecting by the character's
// gender and age stage. Candidates tie-break on a stable hash of the
// speaker name so the pick does not depend on scene order.
func (r *Registry) Assign(speaker string, ch types.Character) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.assignments[speaker]; ok {
		return id
	}
	id := r.match(speaker, ch)
	r.assignments[speaker] = id
	return id
}

// Lookup returns an existing assignment without creating one.
func (r *Registry) Lookup(speaker string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.assignments[speaker]
	return id, ok
}

func (r *Registry) NarrationVoice() string { return r.narrator }

// Assignments returns a copy of the current speaker map.
func (r *Registry) Assignments() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.assignments))
	for k, v := range r.assignments {
		out[k] = v
	}
	return out
}

func (r *Registry) match(speaker string, ch types.Character) string {
	gender := ch.Appearance.Gender
	stage := effectiveAgeStage(ch.Appearance)

	var exact, byGender []Entry
	for _, e := range r.catalog {
		if e.Gender != gender {
			continue
		}
		byGender = append(byGender, e)
		if e.AgeStage == stage {
			exact = append(exact, e)
		}
	}
	if len(exact) > 0 {
		return exact[speakerHash(speaker)%uint32(len(exact))].ID
	}
	if len(byGender) > 0 {
		return byGender[speakerHash(speaker)%uint32(len(byGender))].ID
	}
	return r.fallback
}

// effectiveAgeStage prefers a numeric age over the declared stage; an
// unknown stage resolves to adult so gendered characters still match.
func effectiveAgeStage(a types.Appearance) types.AgeStage {
	if a.Age > 0 {
		switch {
		case a.Age < 12:
			return types.AgeChild
		case a.Age < 25:
			return types.AgeYouth
		case a.Age >= 60:
			return types.AgeElder
		default:
			return types.AgeAdult
		}
	}
	switch a.AgeStage {
	case types.AgeChild, types.AgeYouth, types.AgeAdult, types.AgeElder:
		return a.AgeStage
	default:
		return types.AgeAdult
	}
}

func speakerHash(speaker string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(speaker))
	return h.Sum32()
}
