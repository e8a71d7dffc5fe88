// Package playback implements the narration synchronization controller: an
// audio clock driving per-tick word highlight updates across karaoke slices,
// with pause/resume across page boundaries.
package playback

import (
	"time"

	"github.com/tianBreznik/overstimulata-sub000/narration"
)

// AudioResource is the host-provided audio handle of one narration. Position
// is the authoritative clock, controllers re-read it before every pause or
// resume decision instead of trusting cached state.
type AudioResource interface {
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
}

// AudioFactory opens the audio resource behind a narration's audio reference.
// Failures leave the slice in its pre-playback state and a later interaction
// retries.
type AudioFactory func(ref string) (AudioResource, error)

// Highlighter is the rendering surface for word highlight state. Progress is
// 0 for a pending word, 1 for a completed one and linear in between.
type Highlighter interface {
	InitSlice(narrationID string, sl narration.Slice, words []narration.WordRange)
	SetWordProgress(narrationID string, wordIndex int, progress float64)
	ClearSlice(narrationID string, sl narration.Slice)
}

// Scheduler runs the highlight loop on a fixed cadence. The callback reports
// whether it wants to keep running, a false return must terminate the
// schedule so no callback dangles after a controller stops.
type Scheduler interface {
	Schedule(interval time.Duration, tick func() bool)
}

// TickScheduler is the wall-clock Scheduler.
type TickScheduler struct{}

func (TickScheduler) Schedule(interval time.Duration, tick func() bool) {
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for range tk.C {
			if !tick() {
				return
			}
		}
	}()
}
