package signaling

import (
	"errors"
	"testing"
)

func TestOutboundQueueDrainOrder(t *testing.T) {
	var q outboundQueue
	for _, s := range []string{"a", "b", "c"} {
		q.push([]byte(s))
	}

	var got []string
	n, err := q.drain(func(b []byte) error {
		got = append(got, string(b))
		return nil
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 3 || len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("drain order: n=%d got=%v", n, got)
	}
	if q.len() != 0 {
		t.Errorf("queue not emptied: %d left", q.len())
	}
}

func TestOutboundQueueDrainStopsOnError(t *testing.T) {
	var q outboundQueue
	for _, s := range []string{"a", "b", "c"} {
		q.push([]byte(s))
	}

	errBoom := errors.New("boom")
	n, err := q.drain(func(b []byte) error {
		if string(b) == "b" {
			return errBoom
		}
		return nil
	})
	if !errors.Is(err, errBoom) || n != 1 {
		t.Fatalf("drain: n=%d err=%v", n, err)
	}
	if q.len() != 2 || string(q.items[0]) != "b" {
		t.Fatalf("remaining queue: %q", q.items)
	}
}
