package negotiation

import (
	"errors"
	"fmt"

	"github.com/1ureka/duet/internal/protocol"
)

var (
	// ErrInvalidState is returned by StartNegotiation outside Idle.
	ErrInvalidState = errors.New("negotiation: invalid state")

	// ErrNoLocalMedia is returned by StartNegotiation before capture is attached.
	ErrNoLocalMedia = errors.New("negotiation: no local media attached")

	// ErrNegotiationTimeout is published when an offer goes unanswered.
	ErrNegotiationTimeout = errors.New("negotiation: timed out waiting for answer")
)

// ProtocolViolation describes an offer or answer received in a state that
// does not accept it. The message is dropped and the state is kept.
type ProtocolViolation struct {
	Kind  protocol.Kind
	State State
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s received in state %s", e.Kind, e.State)
}

// TransportError is a rejection by the underlying negotiation primitive.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
