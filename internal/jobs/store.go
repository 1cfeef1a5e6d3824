package jobs

import (
	"sync"
	"time"

	"github.com/noveltoon/backend/internal/types"
)

// Store is the in-memory job index. Long-term job persistence lives
// outside the engine; this covers the lifetime of a running process.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*types.Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*types.Job)}
}

func (s *Store) Create(job *types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

// Get returns a copy; callers never share the stored struct.
func (s *Store) Get(id string) (types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return types.Job{}, false
	}
	return *job, true
}

// Update mutates a job under the lock. Progress is clamped monotonic and
// terminal statuses are frozen, so a racing late writer cannot regress
// what observers already saw.
func (s *Store) Update(id string, fn func(*types.Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	if job.Status.Terminal() {
		return false
	}
	prevPct := job.ProgressPct
	fn(job)
	if job.ProgressPct < prevPct {
		job.ProgressPct = prevPct
	}
	job.UpdatedAt = time.Now().UTC()
	return true
}

func (s *Store) List() []types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}
