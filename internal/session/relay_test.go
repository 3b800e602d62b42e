package session

import (
	"context"
	"testing"

	"github.com/1ureka/duet/internal/event"
	"github.com/1ureka/duet/internal/event/eventtest"
	"github.com/1ureka/duet/internal/media"
	"github.com/1ureka/duet/internal/negotiation"
	"github.com/1ureka/duet/internal/relay"
	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/transport"
)

type relayPeer struct {
	ch      *signaling.Channel
	tr      *transport.Transport
	events  *eventtest.Recorder
	session *Session
}

func joinRelay(t *testing.T, url string) *relayPeer {
	t.Helper()

	tr, err := transport.NewTransport(nil)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	p := &relayPeer{
		ch:     signaling.NewChannel(url),
		tr:     tr,
		events: &eventtest.Recorder{},
	}
	p.session = New(p.ch, tr, &media.Device{Secure: true}, Options{EarlyMedia: true, Sink: p.events})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		p.ch.Close()
	})

	eventually(t, "relay channel open", func() bool { return p.ch.State() == signaling.StateOpen })
	eventually(t, "identity", func() bool { return p.events.Count(event.IdentityAssigned) == 1 })
	return p
}

func (p *relayPeer) state(t *testing.T) negotiation.State {
	t.Helper()
	_, st, err := p.session.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return st
}

func TestCallThroughRelay(t *testing.T) {
	srv := relay.NewServer("/ws", 0)
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	url := "ws://" + srv.Addr() + "/ws"
	alice := joinRelay(t, url)
	bob := joinRelay(t, url)

	if alice.ch.Identity() == bob.ch.Identity() {
		t.Fatalf("peers share identity %q", alice.ch.Identity())
	}

	if err := alice.session.RequestCall(context.Background()); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}

	eventually(t, "both peers connected", func() bool {
		return alice.state(t) == negotiation.StateConnected && bob.state(t) == negotiation.StateConnected
	})

	if role, _, _ := bob.session.Status(); role != negotiation.RoleResponder {
		t.Errorf("bob role: got %s, want %s", role, negotiation.RoleResponder)
	}
	// Both sides send media.
	if n := len(alice.tr.LocalTracks()); n != 2 {
		t.Errorf("alice local tracks: got %d, want 2", n)
	}
	if n := len(bob.tr.LocalTracks()); n != 2 {
		t.Errorf("bob local tracks: got %d, want 2", n)
	}
	if n := alice.events.Count(event.OfferSent); n != 1 {
		t.Errorf("offers sent: got %d, want 1", n)
	}
	if n := bob.events.Count(event.AnswerSent); n != 1 {
		t.Errorf("answers sent: got %d, want 1", n)
	}
	if n := alice.events.Count(event.ProtocolViolation) + bob.events.Count(event.ProtocolViolation); n != 0 {
		t.Errorf("unexpected protocol violations: %d", n)
	}
}
