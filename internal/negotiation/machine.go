// Package negotiation implements the offer/answer state machine that sets up
// a call between two peers.
//
// A Machine is not safe for concurrent use. The owner must deliver every
// event (local start, relayed message, local candidate, timeout) one at a
// time; the session package does so from a single event loop.
package negotiation

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/event"
	"github.com/1ureka/duet/internal/protocol"
	"github.com/1ureka/duet/internal/util"
)

// Role records which side started the current attempt.
type Role int

const (
	RoleIdle Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleIdle:
		return "idle"
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// State is the negotiation progress.
type State int

const (
	StateIdle State = iota
	StateAwaitingAnswer
	StateAwaitingLocalAnswer
	StateConnected
	StateFailed // a description was rejected; the attempt is abandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateAwaitingLocalAnswer:
		return "awaiting-local-answer"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Peer is the negotiation primitive the machine drives.
type Peer interface {
	LocalTracks() []webrtc.TrackLocal
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

// Relay carries messages to the other peer. Send must not block on the
// connection state.
type Relay interface {
	Send(protocol.Message)
}

// Machine is the negotiation state machine for one call.
type Machine struct {
	peer  Peer
	relay Relay
	sink  event.Sink

	role    Role
	state   State
	attempt int

	// remoteSet is true once a remote description has been applied;
	// candidates arriving earlier wait in pending, in arrival order.
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	// abandoned is set by a timeout until the next attempt starts; remote
	// candidates seen meanwhile belong to the timed-out attempt.
	abandoned bool
}

// NewMachine returns an Idle machine. sink may be nil.
func NewMachine(peer Peer, relay Relay, sink event.Sink) *Machine {
	if sink == nil {
		sink = event.Discard
	}
	return &Machine{peer: peer, relay: relay, sink: sink}
}

func (m *Machine) Role() Role   { return m.role }
func (m *Machine) State() State { return m.state }

// Attempt identifies the current negotiation attempt. It changes every time
// an attempt starts, so stale timeouts can be told apart.
func (m *Machine) Attempt() int { return m.attempt }

// Buffered returns the number of remote candidates waiting for a description.
func (m *Machine) Buffered() int { return len(m.pending) }

// StartNegotiation creates and relays a local offer. It requires the Idle
// state and attached local media.
func (m *Machine) StartNegotiation() error {
	if m.state != StateIdle {
		return fmt.Errorf("%w: cannot start a call while %s", ErrInvalidState, m.state)
	}
	if len(m.peer.LocalTracks()) == 0 {
		return ErrNoLocalMedia
	}

	offer, err := m.peer.CreateOffer()
	if err != nil {
		// Nothing was applied yet, so the machine stays Idle.
		terr := &TransportError{Op: "create offer", Err: err}
		m.publish(event.TransportError, "", terr)
		return terr
	}

	m.attempt++
	m.abandoned = false
	m.role = RoleInitiator
	if err := m.peer.SetLocalDescription(offer); err != nil {
		return m.fail("apply local offer", err)
	}

	m.transition(StateAwaitingAnswer)
	m.relay.Send(protocol.Offer{Description: offer})
	m.publish(event.OfferSent, "", nil)
	return nil
}

// HandleOffer answers a remote offer. Outside Idle the offer is reported as a
// protocol violation and dropped.
func (m *Machine) HandleOffer(desc webrtc.SessionDescription) {
	if m.state != StateIdle {
		m.violation(protocol.KindOffer)
		return
	}

	m.attempt++
	m.abandoned = false
	m.role = RoleResponder
	if err := m.peer.SetRemoteDescription(desc); err != nil {
		m.fail("apply remote offer", err)
		return
	}
	m.remoteSet = true
	m.transition(StateAwaitingLocalAnswer)
	m.flushCandidates()

	answer, err := m.peer.CreateAnswer()
	if err != nil {
		m.fail("create answer", err)
		return
	}
	if err := m.peer.SetLocalDescription(answer); err != nil {
		m.fail("apply local answer", err)
		return
	}

	m.transition(StateConnected)
	m.relay.Send(protocol.Answer{Description: answer})
	m.publish(event.AnswerSent, "", nil)
}

// HandleAnswer completes a negotiation this peer started. Outside
// AwaitingAnswer the answer is reported as a protocol violation and dropped.
func (m *Machine) HandleAnswer(desc webrtc.SessionDescription) {
	if m.state != StateAwaitingAnswer {
		m.violation(protocol.KindAnswer)
		return
	}

	if err := m.peer.SetRemoteDescription(desc); err != nil {
		m.fail("apply remote answer", err)
		return
	}
	m.remoteSet = true
	m.transition(StateConnected)
	m.publish(event.AnswerApplied, "", nil)
	m.flushCandidates()
}

// HandleCandidate applies a remote candidate, or buffers it until a remote
// description has been applied. Candidates arriving after a timeout and
// before the next attempt are dropped.
func (m *Machine) HandleCandidate(c webrtc.ICECandidateInit) {
	if m.abandoned {
		m.publish(event.CandidateDropped, c.Candidate, nil)
		return
	}
	if !m.remoteSet {
		m.pending = append(m.pending, c)
		util.Stats.AddBuffered()
		m.publish(event.CandidateBuffered, c.Candidate, nil)
		return
	}
	m.applyCandidate(c)
}

// OnLocalCandidate relays one locally discovered candidate.
func (m *Machine) OnLocalCandidate(c webrtc.ICECandidateInit) {
	m.relay.Send(protocol.Candidate{Init: c})
	m.publish(event.CandidateSent, c.Candidate, nil)
}

// HandleTimeout abandons an unanswered offer from the given attempt and
// returns to Idle. Timeouts from earlier attempts, or arriving after the
// answer, are ignored.
func (m *Machine) HandleTimeout(attempt int) {
	if m.state != StateAwaitingAnswer || attempt != m.attempt {
		return
	}

	rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
	if err := m.peer.SetLocalDescription(rollback); err != nil {
		util.LogDebug("rollback of unanswered offer failed: %v", err)
	}

	m.role = RoleIdle
	m.pending = nil
	m.abandoned = true
	m.transition(StateIdle)
	m.publish(event.NegotiationTimeout, "", ErrNegotiationTimeout)
}

// HandleIdentity satisfies protocol.Handler; identities are the channel's concern.
func (m *Machine) HandleIdentity(string) {}

var _ protocol.Handler = (*Machine)(nil)

func (m *Machine) flushCandidates() {
	pending := m.pending
	m.pending = nil
	for _, c := range pending {
		m.applyCandidate(c)
	}
}

// applyCandidate hands a candidate to the primitive. A rejected candidate is
// reported but does not abandon the attempt.
func (m *Machine) applyCandidate(c webrtc.ICECandidateInit) {
	if err := m.peer.AddICECandidate(c); err != nil {
		m.publish(event.TransportError, c.Candidate, &TransportError{Op: "add candidate", Err: err})
		return
	}
	m.publish(event.CandidateApplied, c.Candidate, nil)
}

func (m *Machine) transition(s State) {
	m.state = s
	m.publish(event.StateChanged, s.String(), nil)
}

func (m *Machine) fail(op string, err error) error {
	terr := &TransportError{Op: op, Err: err}
	m.transition(StateFailed)
	m.publish(event.TransportError, "", terr)
	return terr
}

func (m *Machine) violation(kind protocol.Kind) {
	m.publish(event.ProtocolViolation, string(kind), &ProtocolViolation{Kind: kind, State: m.state})
}

func (m *Machine) publish(kind event.Kind, detail string, err error) {
	m.sink.Publish(event.Event{Kind: kind, Detail: detail, Err: err})
}
