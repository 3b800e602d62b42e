package util

import (
	"strings"
	"testing"
)

func TestFormatStats(t *testing.T) {
	got := formatStats(snapshot{sent: 3, recv: 12, deferred: 1, buffered: 4})
	want := "Signal:   3↑  12↓ | Deferred:   1 | Buffered candidates:   4"
	if got != want {
		t.Errorf("formatStats: got %q, want %q", got, want)
	}
}

func TestSnapshotDelta(t *testing.T) {
	prev := Stats.snapshot()
	Stats.AddSent()
	Stats.AddSent()
	Stats.AddRecv()
	Stats.AddDeferred()

	d := Stats.snapshot().sub(prev)
	if d.sent != 2 || d.recv != 1 || d.deferred != 1 || d.buffered != 0 {
		t.Errorf("unexpected delta: %+v", d)
	}
}

func TestPionLoggerScope(t *testing.T) {
	l := PionLoggerFactory{}.NewLogger("ice").(pionLogger)
	if got := l.prefix("gathering"); !strings.HasPrefix(got, "[pion/ice]") {
		t.Errorf("prefix: got %q", got)
	}
}
