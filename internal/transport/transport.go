// Package transport wraps a pion PeerConnection as the negotiation primitive
// driven by the signaling state machine. Media flowing over the connection
// once negotiation completes is not handled here.
package transport

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

// Transport wraps a single PeerConnection with the local tracks attached to it.
type Transport struct {
	pc *webrtc.PeerConnection

	mu       sync.RWMutex
	tracks   []webrtc.TrackLocal
	attached map[string]bool
	pcState  webrtc.PeerConnectionState
}

// NewTransport creates a Transport backed by a new PeerConnection.
func NewTransport(iceServers []string) (*Transport, error) {
	pc, err := newPeerConnection(iceServers)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		pc:       pc,
		attached: make(map[string]bool),
		pcState:  webrtc.PeerConnectionStateNew,
	}

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()
	})

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close shuts down the PeerConnection.
func (t *Transport) Close() error {
	return t.pc.Close()
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// OnConnectivityChange registers a callback for ICE connection state changes.
func (t *Transport) OnConnectivityChange(fn func(webrtc.ICEConnectionState)) {
	t.pc.OnICEConnectionStateChange(fn)
}

// OnRemoteTrack registers a callback invoked when the peer's media arrives.
func (t *Transport) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// AddTracks attaches local tracks for sending. Tracks already attached (by
// ID) are skipped, so repeated calls with the same capture are harmless.
func (t *Transport) AddTracks(tracks []webrtc.TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, track := range tracks {
		if t.attached[track.ID()] {
			continue
		}
		if _, err := t.pc.AddTrack(track); err != nil {
			return err
		}
		t.attached[track.ID()] = true
		t.tracks = append(t.tracks, track)
	}
	return nil
}

// LocalTracks returns the attached local tracks.
func (t *Transport) LocalTracks() []webrtc.TrackLocal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]webrtc.TrackLocal(nil), t.tracks...)
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. End of gathering is not reported.
func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			fn(c.ToJSON())
		}
	})
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}
