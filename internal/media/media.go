// Package media acquires the local capture that a call sends to the peer.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrMediaUnavailable wraps every capture failure.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrInsecureContext means capture was refused because the relay is
	// reached over plain transport from a non-loopback host.
	ErrInsecureContext = errors.New("capture requires a secure context")

	// ErrNoDevices means no capture device is available.
	ErrNoDevices = errors.New("no capture devices")
)

// Capturer acquires local tracks.
type Capturer interface {
	Acquire(ctx context.Context) ([]webrtc.TrackLocal, error)
}

// Hint returns a remediation hint for a capture failure.
func Hint(err error, secureURL string) string {
	switch {
	case errors.Is(err, ErrInsecureContext):
		return "connect to the relay over TLS: " + secureURL
	case errors.Is(err, ErrNoDevices):
		return "enable capture (drop -no-media) or attach a device"
	}
	return "check capture device permissions"
}

// Device produces one audio and one video track for the call. Acquire is
// idempotent: every call after the first success returns the same tracks.
type Device struct {
	// Secure reports whether capture is allowed in the current context.
	Secure bool

	// Disabled simulates a host without capture devices.
	Disabled bool

	StreamID string

	mu     sync.Mutex
	tracks []webrtc.TrackLocal
}

// Acquire returns the capture tracks, creating them on first use.
func (d *Device) Acquire(ctx context.Context) ([]webrtc.TrackLocal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tracks != nil {
		return d.tracks, nil
	}
	if !d.Secure {
		return nil, fmt.Errorf("%w: %w", ErrMediaUnavailable, ErrInsecureContext)
	}
	if d.Disabled {
		return nil, fmt.Errorf("%w: %w", ErrMediaUnavailable, ErrNoDevices)
	}

	stream := d.StreamID
	if stream == "" {
		stream = "duet"
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", stream)
	if err != nil {
		return nil, fmt.Errorf("%w: audio track: %w", ErrMediaUnavailable, err)
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", stream)
	if err != nil {
		return nil, fmt.Errorf("%w: video track: %w", ErrMediaUnavailable, err)
	}

	d.tracks = []webrtc.TrackLocal{audio, video}
	return d.tracks, nil
}
