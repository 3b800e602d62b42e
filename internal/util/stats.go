package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling counter.
var Stats = &stats{}

type stats struct {
	MessagesSent       atomic.Int64 // messages written to the relay
	MessagesRecv       atomic.Int64 // messages read from the relay
	MessagesDeferred   atomic.Int64 // sends queued because the channel was not open
	CandidatesBuffered atomic.Int64 // remote candidates held until a description landed
}

func (s *stats) AddSent()     { s.MessagesSent.Add(1) }
func (s *stats) AddRecv()     { s.MessagesRecv.Add(1) }
func (s *stats) AddDeferred() { s.MessagesDeferred.Add(1) }
func (s *stats) AddBuffered() { s.CandidatesBuffered.Add(1) }

type snapshot struct {
	sent, recv, deferred, buffered int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		sent:     s.MessagesSent.Load(),
		recv:     s.MessagesRecv.Load(),
		deferred: s.MessagesDeferred.Load(),
		buffered: s.CandidatesBuffered.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs signaling statistics
// every 10 seconds when anything changed. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur.sub(prev)))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s snapshot) sub(o snapshot) snapshot {
	return snapshot{
		sent:     s.sent - o.sent,
		recv:     s.recv - o.recv,
		deferred: s.deferred - o.deferred,
		buffered: s.buffered - o.buffered,
	}
}

// formatStats returns a formatted string of a stats delta for display in the logger.
func formatStats(d snapshot) string {
	return fmt.Sprintf("Signal: %3d↑ %3d↓ | Deferred: %3d | Buffered candidates: %3d",
		d.sent,
		d.recv,
		d.deferred,
		d.buffered,
	)
}
