package media

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDeviceAcquireIsIdempotent(t *testing.T) {
	d := &Device{Secure: true}

	first, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected audio and video tracks, got %d", len(first))
	}
	if first[0].Kind().String() != "audio" || first[1].Kind().String() != "video" {
		t.Errorf("unexpected track kinds: %s, %s", first[0].Kind(), first[1].Kind())
	}

	second, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("track %d was recreated", i)
		}
	}
}

func TestDeviceAcquireFailures(t *testing.T) {
	testCases := []struct {
		name  string
		dev   *Device
		cause error
		hint  string
	}{
		{"insecure context", &Device{Secure: false}, ErrInsecureContext, "TLS"},
		{"no devices", &Device{Secure: true, Disabled: true}, ErrNoDevices, "-no-media"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tracks, err := tc.dev.Acquire(context.Background())
			if tracks != nil {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
			if !errors.Is(err, ErrMediaUnavailable) || !errors.Is(err, tc.cause) {
				t.Fatalf("unexpected error: %v", err)
			}
			if hint := Hint(err, "wss://relay:8000/ws"); !strings.Contains(hint, tc.hint) {
				t.Errorf("hint %q does not mention %q", hint, tc.hint)
			}
		})
	}
}

func TestDeviceAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&Device{Secure: true}).Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
