package eventtest

import (
	"testing"

	"github.com/1ureka/duet/internal/event"
)

func TestRecorderCounts(t *testing.T) {
	r := &Recorder{}
	sink := event.Multi(r, event.Discard)

	sink.Publish(event.Event{Kind: event.OfferSent})
	sink.Publish(event.Event{Kind: event.CandidateSent, Detail: "c1"})
	sink.Publish(event.Event{Kind: event.CandidateSent, Detail: "c2"})

	if got := r.Count(event.CandidateSent); got != 2 {
		t.Errorf("Count(CandidateSent): got %d, want 2", got)
	}
	events := r.Events()
	if len(events) != 3 || events[2].Detail != "c2" {
		t.Fatalf("Events: got %+v", events)
	}

	// The returned slice is a copy.
	events[0].Kind = event.AnswerSent
	if r.Count(event.AnswerSent) != 0 {
		t.Error("Events exposed internal storage")
	}
}
