package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrUnknownType is returned by Decode for an unrecognised type tag.
	ErrUnknownType = errors.New("unknown message type")

	// ErrEmptyCandidate is returned by Decode for a candidate message without
	// a candidate (end-of-candidates marker). Callers ignore such messages.
	ErrEmptyCandidate = errors.New("empty candidate")
)

// envelope is the JSON record exchanged through the relay.
type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serializes a Message into its wire form.
func Encode(msg Message) ([]byte, error) {
	var payload any
	switch m := msg.(type) {
	case Identity:
		payload = m.ID
	case Offer:
		payload = m.Description
	case Answer:
		payload = m.Description
	case Candidate:
		payload = m.Init
	default:
		return nil, fmt.Errorf("encode %T: %w", msg, ErrUnknownType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Type: msg.Kind(), Data: data})
}

// Decode deserializes a wire record into a Message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case KindIdentity:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return nil, fmt.Errorf("decode client_id: %w", err)
		}
		return Identity{ID: id}, nil

	case KindOffer:
		desc, err := decodeDescription(env.Data, webrtc.SDPTypeOffer)
		if err != nil {
			return nil, err
		}
		return Offer{Description: desc}, nil

	case KindAnswer:
		desc, err := decodeDescription(env.Data, webrtc.SDPTypeAnswer)
		if err != nil {
			return nil, err
		}
		return Answer{Description: desc}, nil

	case KindCandidate:
		if isEmpty(env.Data) {
			return nil, ErrEmptyCandidate
		}
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(env.Data, &init); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		if init.Candidate == "" {
			return nil, ErrEmptyCandidate
		}
		return Candidate{Init: init}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

// decodeDescription parses a session description payload. A missing "type"
// field is filled in from the envelope tag.
func decodeDescription(data json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	if isEmpty(data) {
		return webrtc.SessionDescription{}, fmt.Errorf("decode %s: missing description", want)
	}

	var raw struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decode %s: %w", want, err)
	}
	if raw.Type != "" && raw.Type != want.String() {
		return webrtc.SessionDescription{}, fmt.Errorf("decode %s: description has type %q", want, raw.Type)
	}
	return webrtc.SessionDescription{Type: want, SDP: raw.SDP}, nil
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
