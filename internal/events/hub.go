package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/noveltoon/backend/internal/logger"
)

const subscriberBuffer = 32

// CloseReasonSlowConsumer marks subscribers dropped because their channel
// buffer filled; the hub never blocks a publisher on a slow reader.
const CloseReasonSlowConsumer = "slow_consumer"

// Subscriber receives one job's event stream. The channel is closed after
// the terminal event is delivered, or early with Reason() set if dropped.
type Subscriber struct {
	ID     string
	C      <-chan Event
	ch     chan Event
	mu     sync.Mutex
	closed bool
	reason string
}

func (s *Subscriber) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// closeWith must only be called while the owning hub's lock is held.
func (s *Subscriber) closeWith(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reason = reason
	close(s.ch)
}

type jobStream struct {
	seq      uint64
	latest   *Event
	terminal bool
	subs     map[*Subscriber]bool
}

// Hub fans events out per job id. Per-subscriber buffered channels,
// drop-on-full; latest-event replay for late subscribers; the terminal
// event closes every subscriber's stream.
type Hub struct {
	mu   sync.Mutex
	jobs map[string]*jobStream
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		jobs: make(map[string]*jobStream),
		log:  log.With("service", "event_hub"),
	}
}

func (h *Hub) stream(jobID string) *jobStream {
	js, ok := h.jobs[jobID]
	if !ok {
		js = &jobStream{subs: make(map[*Subscriber]bool)}
		h.jobs[jobID] = js
	}
	return js
}

// Publish stamps the event with the job's next sequence number and fans it
// out, returning the stamped copy. Events published after a terminal event
// are dropped.
func (h *Hub) Publish(jobID string, ev Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	js := h.stream(jobID)
	if js.terminal {
		h.log.Warn("Dropping event published after terminal", "job_id", jobID, "type", ev.Type)
		return ev
	}
	js.seq++
	ev.JobID = jobID
	ev.Sequence = js.seq
	js.latest = &ev

	for sub := range js.subs {
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("Dropping slow subscriber", "job_id", jobID, "subscriber_id", sub.ID)
			sub.closeWith(CloseReasonSlowConsumer)
			delete(js.subs, sub)
		}
	}

	if ev.Terminal() {
		js.terminal = true
		for sub := range js.subs {
			sub.closeWith("")
			delete(js.subs, sub)
		}
	}
	return ev
}

// Subscribe attaches to a job's stream. The latest event, if any, is
// replayed first; if the job already finished the stream closes right
// after the replay.
func (h *Hub) Subscribe(jobID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID: uuid.NewString(),
		ch: make(chan Event, subscriberBuffer),
	}
	sub.C = sub.ch

	js := h.stream(jobID)
	if js.latest != nil {
		sub.ch <- *js.latest
	}
	if js.terminal {
		sub.closeWith("")
		return sub
	}
	js.subs[sub] = true
	return sub
}

// Unsubscribe detaches an active subscriber and closes its channel.
func (h *Hub) Unsubscribe(jobID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if js, ok := h.jobs[jobID]; ok {
		delete(js.subs, sub)
	}
	sub.closeWith("")
}

// Latest returns the most recent event for a job, if one was published.
func (h *Hub) Latest(jobID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if js, ok := h.jobs[jobID]; ok && js.latest != nil {
		return *js.latest, true
	}
	return Event{}, false
}

// Forget drops a job's stream state. Call after subscribers have drained a
// terminal event; long-lived processes would otherwise accumulate streams.
func (h *Hub) Forget(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if js, ok := h.jobs[jobID]; ok {
		for sub := range js.subs {
			sub.closeWith("")
		}
		delete(h.jobs, jobID)
	}
}
