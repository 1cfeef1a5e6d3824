package events

import (
	"testing"

	"github.com/noveltoon/backend/internal/logger"
)

func progressEvent(pct int) Event {
	return Event{Type: TypeProgress, Stage: "render", Progress: pct}
}

func TestPublishStampsMonotonicSequence(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sub := hub.Subscribe("job-1")

	hub.Publish("job-1", progressEvent(10))
	hub.Publish("job-1", progressEvent(20))
	hub.Publish("job-1", progressEvent(30))

	var prev uint64
	for i := 0; i < 3; i++ {
		ev := <-sub.C
		if ev.Sequence <= prev {
			t.Fatalf("sequence not monotonic: %d after %d", ev.Sequence, prev)
		}
		if ev.JobID != "job-1" {
			t.Fatalf("job id not stamped: %q", ev.JobID)
		}
		prev = ev.Sequence
	}
}

func TestLateSubscriberGetsLatestReplay(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Publish("job-2", progressEvent(10))
	hub.Publish("job-2", progressEvent(40))

	sub := hub.Subscribe("job-2")
	ev := <-sub.C
	if ev.Progress != 40 {
		t.Fatalf("replayed event progress = %d, want 40 (latest)", ev.Progress)
	}

	// Live events continue after the replay.
	hub.Publish("job-2", progressEvent(50))
	ev = <-sub.C
	if ev.Progress != 50 {
		t.Fatalf("live event progress = %d, want 50", ev.Progress)
	}
}

func TestTerminalEventClosesAllSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	a := hub.Subscribe("job-3")
	b := hub.Subscribe("job-3")

	hub.Publish("job-3", Event{Type: TypeCompleted, Result: &CompletedResult{VideoPath: "/v/final.mp4"}})

	for _, sub := range []*Subscriber{a, b} {
		ev, open := <-sub.C
		if !open || ev.Type != TypeCompleted {
			t.Fatalf("subscriber missed terminal event")
		}
		if ev.Result == nil || ev.Result.VideoPath != "/v/final.mp4" {
			t.Fatalf("terminal payload mismatch: %+v", ev.Result)
		}
		if _, open := <-sub.C; open {
			t.Fatalf("stream not closed after terminal event")
		}
	}
}

func TestSubscribeAfterTerminalReplaysAndCloses(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Publish("job-4", Event{Type: TypeFailed, Kind: "ValidationError", Detail: "too short"})

	sub := hub.Subscribe("job-4")
	ev, open := <-sub.C
	if !open || ev.Type != TypeFailed || ev.Kind != "ValidationError" {
		t.Fatalf("late subscriber did not get terminal replay: %+v", ev)
	}
	if _, open := <-sub.C; open {
		t.Fatalf("stream stayed open after terminal replay")
	}
}

func TestPublishAfterTerminalIsDropped(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Publish("job-5", Event{Type: TypeCompleted})
	hub.Publish("job-5", progressEvent(99))

	if ev, ok := hub.Latest("job-5"); !ok || ev.Type != TypeCompleted {
		t.Fatalf("latest event overwritten after terminal: %+v", ev)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(logger.NewNop())
	slow := hub.Subscribe("job-6")

	// Overflow the buffer without draining.
	for i := 0; i < subscriberBuffer+2; i++ {
		hub.Publish("job-6", progressEvent(i))
	}

	drained := 0
	for range slow.C {
		drained++
	}
	if drained != subscriberBuffer {
		t.Fatalf("drained %d events, want %d", drained, subscriberBuffer)
	}
	if slow.Reason() != CloseReasonSlowConsumer {
		t.Fatalf("close reason = %q, want %q", slow.Reason(), CloseReasonSlowConsumer)
	}

	// The publisher keeps going for healthy subscribers.
	fresh := hub.Subscribe("job-6")
	hub.Publish("job-6", progressEvent(100))
	first := <-fresh.C // replay
	second := <-fresh.C
	if first.Progress == second.Progress {
		t.Fatalf("expected replay then live event, got duplicates")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(logger.NewNop())
	sub := hub.Subscribe("job-7")
	hub.Unsubscribe("job-7", sub)
	if _, open := <-sub.C; open {
		t.Fatalf("channel open after unsubscribe")
	}
	// Publishing afterwards must not panic.
	hub.Publish("job-7", progressEvent(1))
}
