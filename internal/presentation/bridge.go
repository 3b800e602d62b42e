// Package presentation turns call events into a status line and a rolling
// diagnostic log. It only observes; nothing it does flows back into the call.
package presentation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/duet/internal/event"
	"github.com/1ureka/duet/internal/negotiation"
	"github.com/1ureka/duet/internal/session"
	"github.com/1ureka/duet/internal/util"
)

const defaultMaxLog = 500

// Bridge is an event.Sink that renders events through the util logger.
type Bridge struct {
	mu       sync.Mutex
	status   string
	log      []string
	maxLog   int
	onStatus func(string)
}

var _ event.Sink = (*Bridge)(nil)

// NewBridge creates a Bridge keeping at most maxLog log lines (0 = default).
func NewBridge(maxLog int) *Bridge {
	if maxLog <= 0 {
		maxLog = defaultMaxLog
	}
	return &Bridge{status: "Connecting...", maxLog: maxLog}
}

// OnStatus registers a callback invoked with every new status line.
func (b *Bridge) OnStatus(fn func(string)) {
	b.mu.Lock()
	b.onStatus = fn
	b.mu.Unlock()
}

// Status returns the current status line.
func (b *Bridge) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Log returns a copy of the rolling log, oldest first.
func (b *Bridge) Log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.log...)
}

// Publish renders one event.
func (b *Bridge) Publish(e event.Event) {
	switch e.Kind {
	case event.ChannelOpen:
		b.logf("Signaling connected")
		b.setStatus("Ready to call")
	case event.ChannelClosed:
		if e.Err != nil {
			b.warnf("Signaling disconnected: %v", e.Err)
			b.setStatus("Connection error")
			return
		}
		b.logf("Signaling disconnected")
		b.setStatus("Disconnected")
	case event.IdentityAssigned:
		b.logf("Assigned client ID: %s", e.Detail)

	case event.CallRequested:
		b.logf("Starting call...")
		b.setStatus("Setting up media...")
	case event.MediaAcquired:
		b.logf("Camera and microphone access granted")
	case event.MediaUnavailable:
		b.warnf("Media setup error: %v", e.Err)
		b.setStatus(fmt.Sprintf("Media access failed: %v (%s)", e.Err, e.Detail))
	case event.CallFailed:
		if errors.Is(e.Err, session.ErrChannelNotReady) {
			b.warnf("Cannot start call - signaling not connected")
			b.setStatus("Signaling not connected")
			return
		}
		if errors.Is(e.Err, negotiation.ErrInvalidState) {
			b.warnf("Call already in progress")
			return
		}
		b.warnf("Call failed: %v", e.Err)
		b.setStatus(fmt.Sprintf("Call failed: %v", e.Err))

	case event.StateChanged:
		util.LogDebug("negotiation state: %s", e.Detail)
	case event.OfferSent:
		b.logf("Offer sent")
		b.setStatus("Call started - waiting for peer")
	case event.AnswerSent:
		b.logf("Sent answer back to peer")
		b.setStatus("Answering call...")
	case event.AnswerApplied:
		b.logf("Call established!")
	case event.CandidateSent:
		util.LogDebug("sent ICE candidate: %s", e.Detail)
	case event.CandidateBuffered:
		b.logf("Buffered ICE candidate until the remote description arrives")
	case event.CandidateApplied:
		b.logf("Added ICE candidate")
	case event.CandidateDropped:
		util.LogDebug("dropped ICE candidate from an abandoned call: %s", e.Detail)
	case event.ProtocolViolation:
		b.warnf("Ignored message: %v", e.Err)
	case event.TransportError:
		b.warnf("Error handling message: %v", e.Err)
		if e.Detail == "" {
			b.setStatus(fmt.Sprintf("Call failed: %v", e.Err))
		}
	case event.NegotiationTimeout:
		b.warnf("No answer from peer: %v", e.Err)
		b.setStatus("No answer - ready to call again")

	case event.Connectivity:
		b.logf("ICE connection state: %s", e.Detail)
		switch e.Detail {
		case "connected", "completed":
			b.setStatus("Video call connected!")
		case "disconnected", "failed":
			b.setStatus("Connection lost")
		}
	case event.RemoteTrack:
		b.logf("Received remote %s track from peer", e.Detail)
		b.setStatus("Connected - receiving remote media")
	}
}

func (b *Bridge) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	util.LogInfo("%s", line)
	b.append(line)
}

func (b *Bridge) warnf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	util.LogWarning("%s", line)
	b.append(line)
}

func (b *Bridge) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, line)
	if over := len(b.log) - b.maxLog; over > 0 {
		b.log = append([]string(nil), b.log[over:]...)
	}
}

func (b *Bridge) setStatus(status string) {
	b.mu.Lock()
	if b.status == status {
		b.mu.Unlock()
		return
	}
	b.status = status
	fn := b.onStatus
	b.mu.Unlock()

	util.LogSuccess("Status: %s", status)
	if fn != nil {
		fn(status)
	}
}
