// Package event defines the observable events published by the signaling
// channel, the negotiation state machine and the session orchestrator.
// Payloads are stable: sinks may rely on Kind and Detail but must never feed
// anything back into the producers.
package event

// Kind identifies what happened.
type Kind string

const (
	ChannelOpen      Kind = "channel_open"
	ChannelClosed    Kind = "channel_closed"
	IdentityAssigned Kind = "identity_assigned" // Detail: identity

	MediaAcquired    Kind = "media_acquired"
	MediaUnavailable Kind = "media_unavailable" // Err: cause
	CallRequested    Kind = "call_requested"
	CallFailed       Kind = "call_failed" // Err: cause

	StateChanged       Kind = "state_changed" // Detail: new state
	OfferSent          Kind = "offer_sent"
	AnswerSent         Kind = "answer_sent"
	AnswerApplied      Kind = "answer_applied"
	CandidateSent      Kind = "candidate_sent"
	CandidateBuffered  Kind = "candidate_buffered"
	CandidateApplied   Kind = "candidate_applied"
	CandidateDropped   Kind = "candidate_dropped"   // Detail: candidate from an abandoned attempt
	ProtocolViolation  Kind = "protocol_violation"  // Err: *negotiation.ProtocolViolation
	TransportError     Kind = "transport_error"     // Err: *negotiation.TransportError
	NegotiationTimeout Kind = "negotiation_timeout" // Err: negotiation.ErrNegotiationTimeout

	Connectivity Kind = "connectivity" // Detail: ICE connection state
	RemoteTrack  Kind = "remote_track" // Detail: track kind
)

// Event is a single observable occurrence.
type Event struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sink consumes events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Publish(e)
		}
	})
}
