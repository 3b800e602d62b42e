// Package session drives a call: it owns the event loop that feeds the
// negotiation state machine and decides when a call starts.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/event"
	"github.com/1ureka/duet/internal/media"
	"github.com/1ureka/duet/internal/negotiation"
	"github.com/1ureka/duet/internal/protocol"
	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/util"
)

const inboxSize = 256

var (
	// ErrChannelNotReady is returned by RequestCall while the relay
	// connection is not open.
	ErrChannelNotReady = errors.New("signaling channel not ready")

	// ErrStopped is returned once the event loop has exited.
	ErrStopped = errors.New("session stopped")
)

// Channel is the relay connection as seen by the session.
type Channel interface {
	negotiation.Relay
	State() signaling.State
	Connect(ctx context.Context)
	OnMessage(fn func(protocol.Message))
	OnOpen(fn func())
	OnClose(fn func(error))
}

// Peer is the negotiation primitive plus the hooks the session listens on.
type Peer interface {
	negotiation.Peer
	AddTracks(tracks []webrtc.TrackLocal) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectivityChange(fn func(webrtc.ICEConnectionState))
	OnRemoteTrack(fn func(*webrtc.TrackRemote))
}

// Options tunes a Session.
type Options struct {
	// AnswerTimeout abandons an unanswered offer. Zero waits forever.
	AnswerTimeout time.Duration

	// EarlyMedia acquires capture when Run starts, before the relay is
	// dialed, so an incoming offer is answered with local media. Failures
	// are only logged; RequestCall retries.
	EarlyMedia bool

	// SecureRelayURL is quoted in the remediation hint for capture failures.
	SecureRelayURL string

	Sink event.Sink
}

// Session coordinates one call. All negotiation work happens on the event
// loop started by Run; other goroutines only post work to it.
type Session struct {
	ch       Channel
	peer     Peer
	capturer media.Capturer
	opts     Options
	sink     event.Sink
	machine  *negotiation.Machine

	inbox chan func()
	done  chan struct{}

	mediaMu    sync.Mutex
	mediaReady bool
}

// New creates a Session. Nothing happens until Run is called.
func New(ch Channel, peer Peer, capturer media.Capturer, opts Options) *Session {
	sink := opts.Sink
	if sink == nil {
		sink = event.Discard
	}
	return &Session{
		ch:       ch,
		peer:     peer,
		capturer: capturer,
		opts:     opts,
		sink:     sink,
		machine:  negotiation.NewMachine(peer, ch, sink),
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
	}
}

// Run wires the channel and peer callbacks, connects to the relay and
// processes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.ch.OnOpen(func() {
		s.post(func() { s.publish(event.ChannelOpen, "", nil) })
	})
	s.ch.OnClose(func(err error) {
		s.post(func() { s.publish(event.ChannelClosed, "", err) })
	})
	s.ch.OnMessage(func(msg protocol.Message) {
		s.post(func() { msg.Dispatch(s) })
	})
	s.peer.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.post(func() { s.machine.OnLocalCandidate(c) })
	})

	// Connectivity and remote media are presentation-only signals.
	s.peer.OnConnectivityChange(func(state webrtc.ICEConnectionState) {
		s.publish(event.Connectivity, state.String(), nil)
	})
	s.peer.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		s.publish(event.RemoteTrack, track.Kind().String(), nil)
	})

	if s.opts.EarlyMedia {
		if err := s.acquireMedia(ctx); err != nil {
			util.LogWarning("early media setup failed: %v", err)
		}
	}

	s.ch.Connect(ctx)

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RequestCall starts a call as the initiator. The relay must be open; local
// capture is acquired first (once per session) and then the offer is sent.
func (s *Session) RequestCall(ctx context.Context) error {
	if s.ch.State() != signaling.StateOpen {
		s.publish(event.CallFailed, "", ErrChannelNotReady)
		return ErrChannelNotReady
	}
	s.publish(event.CallRequested, "", nil)

	if err := s.acquireMedia(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if !s.post(func() { errCh <- s.start() }) {
		return ErrStopped
	}

	select {
	case err := <-errCh:
		if err != nil {
			s.publish(event.CallFailed, "", err)
			return fmt.Errorf("failed to start call: %w", err)
		}
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the machine's role and state as seen by the event loop.
func (s *Session) Status() (negotiation.Role, negotiation.State, error) {
	type status struct {
		role  negotiation.Role
		state negotiation.State
	}
	ch := make(chan status, 1)
	if !s.post(func() { ch <- status{s.machine.Role(), s.machine.State()} }) {
		return negotiation.RoleIdle, negotiation.StateIdle, ErrStopped
	}
	select {
	case st := <-ch:
		return st.role, st.state, nil
	case <-s.done:
		return negotiation.RoleIdle, negotiation.StateIdle, ErrStopped
	}
}

// ---------------------------------------------------------------------------
// Relayed messages (run on the event loop)
// ---------------------------------------------------------------------------

var _ protocol.Handler = (*Session)(nil)

func (s *Session) HandleIdentity(id string) {
	s.publish(event.IdentityAssigned, id, nil)
}

func (s *Session) HandleOffer(desc webrtc.SessionDescription)  { s.machine.HandleOffer(desc) }
func (s *Session) HandleAnswer(desc webrtc.SessionDescription) { s.machine.HandleAnswer(desc) }
func (s *Session) HandleCandidate(c webrtc.ICECandidateInit)   { s.machine.HandleCandidate(c) }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// start runs on the event loop.
func (s *Session) start() error {
	if err := s.machine.StartNegotiation(); err != nil {
		return err
	}

	if s.opts.AnswerTimeout > 0 {
		attempt := s.machine.Attempt()
		time.AfterFunc(s.opts.AnswerTimeout, func() {
			s.post(func() { s.machine.HandleTimeout(attempt) })
		})
	}
	return nil
}

// acquireMedia acquires capture and attaches it to the peer, at most once.
func (s *Session) acquireMedia(ctx context.Context) error {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()

	if s.mediaReady {
		return nil
	}

	tracks, err := s.capturer.Acquire(ctx)
	if err == nil {
		err = s.peer.AddTracks(tracks)
	}
	if err != nil {
		if !errors.Is(err, media.ErrMediaUnavailable) {
			err = fmt.Errorf("%w: %w", media.ErrMediaUnavailable, err)
		}
		s.publish(event.MediaUnavailable, media.Hint(err, s.opts.SecureRelayURL), err)
		return err
	}

	s.mediaReady = true
	s.publish(event.MediaAcquired, fmt.Sprintf("%d tracks", len(tracks)), nil)
	return nil
}

// post queues fn on the event loop. It reports false once the loop is gone.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) publish(kind event.Kind, detail string, err error) {
	s.sink.Publish(event.Event{Kind: kind, Detail: detail, Err: err})
}
