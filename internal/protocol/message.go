// Package protocol defines the signaling messages relayed between two peers
// and their JSON wire format.
package protocol

import "github.com/pion/webrtc/v4"

// Kind is the type tag carried by every message on the wire.
type Kind string

const (
	KindIdentity  Kind = "client_id" // relay-assigned peer identity
	KindOffer     Kind = "offer"     // session description from the initiator
	KindAnswer    Kind = "answer"    // session description from the responder
	KindCandidate Kind = "candidate" // trickled connectivity candidate
)

// Message is one relayed signaling message. The set of implementations is
// closed: Identity, Offer, Answer and Candidate.
type Message interface {
	Kind() Kind

	// Dispatch calls the Handler method matching the concrete variant.
	Dispatch(h Handler)
}

// Handler receives a decoded Message through Dispatch. Every variant has its
// own method, so adding a variant breaks every Handler that does not cover it.
type Handler interface {
	HandleIdentity(id string)
	HandleOffer(desc webrtc.SessionDescription)
	HandleAnswer(desc webrtc.SessionDescription)
	HandleCandidate(c webrtc.ICECandidateInit)
}

// Identity announces the identity the relay assigned to this connection.
type Identity struct {
	ID string
}

// Offer carries the initiator's session description.
type Offer struct {
	Description webrtc.SessionDescription
}

// Answer carries the responder's session description.
type Answer struct {
	Description webrtc.SessionDescription
}

// Candidate carries a single connectivity candidate.
type Candidate struct {
	Init webrtc.ICECandidateInit
}

func (Identity) Kind() Kind  { return KindIdentity }
func (Offer) Kind() Kind     { return KindOffer }
func (Answer) Kind() Kind    { return KindAnswer }
func (Candidate) Kind() Kind { return KindCandidate }

func (m Identity) Dispatch(h Handler)  { h.HandleIdentity(m.ID) }
func (m Offer) Dispatch(h Handler)     { h.HandleOffer(m.Description) }
func (m Answer) Dispatch(h Handler)    { h.HandleAnswer(m.Description) }
func (m Candidate) Dispatch(h Handler) { h.HandleCandidate(m.Init) }
