package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/media"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport(nil)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

// TestAddTracksIdempotent verifies that attaching the same capture twice
// does not add duplicate senders.
func TestAddTracksIdempotent(t *testing.T) {
	tr := newTestTransport(t)

	tracks, err := (&media.Device{Secure: true}).Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := tr.AddTracks(tracks); err != nil {
		t.Fatalf("AddTracks: %v", err)
	}
	if err := tr.AddTracks(tracks); err != nil {
		t.Fatalf("second AddTracks: %v", err)
	}

	if got := len(tr.LocalTracks()); got != 2 {
		t.Errorf("LocalTracks: got %d, want 2", got)
	}
	if got := len(tr.pc.GetSenders()); got != 2 {
		t.Errorf("senders: got %d, want 2", got)
	}
}

// TestOfferAnswerExchange drives two transports through an offer/answer
// exchange without any network traffic.
func TestOfferAnswerExchange(t *testing.T) {
	caller := newTestTransport(t)
	callee := newTestTransport(t)

	tracks, err := (&media.Device{Secure: true}).Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := caller.AddTracks(tracks); err != nil {
		t.Fatal(err)
	}

	offer, err := caller.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Fatalf("offer type: %s", offer.Type)
	}
	if !strings.Contains(offer.SDP, "m=audio") || !strings.Contains(offer.SDP, "m=video") {
		t.Fatalf("offer lacks media sections:\n%s", offer.SDP)
	}
	if err := caller.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription(offer): %v", err)
	}

	if err := callee.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription(offer): %v", err)
	}
	answer, err := callee.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := callee.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription(answer): %v", err)
	}
	if err := caller.SetRemoteDescription(answer); err != nil {
		t.Fatalf("SetRemoteDescription(answer): %v", err)
	}
}

// TestSetRemoteDescriptionRejectsGarbage verifies that malformed payloads
// surface as errors from the primitive.
func TestSetRemoteDescriptionRejectsGarbage(t *testing.T) {
	tr := newTestTransport(t)
	err := tr.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})
	if err == nil {
		t.Fatal("expected error for malformed SDP")
	}
}
