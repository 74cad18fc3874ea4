// Package player streams decoded clips to a voice connection one at a time.
//
// A [Player] paces frames onto the connection's output stream at real-time
// speed so that [Player.Play] returns when the listener has heard the clip.
// Starting a new clip or calling [Player.Stop] cuts the current one short.
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/dictee/pkg/audio"
)

// ErrInterrupted is returned by [Player.Play] when playback was cut short by
// [Player.Stop] or by a newer clip.
var ErrInterrupted = errors.New("player: playback interrupted")

// DefaultLead is how far ahead of real time frames are written, which keeps
// the platform's send buffer from running dry.
const DefaultLead = 5

// Option configures a [Player].
type Option func(*Player)

// WithFrameInterval sets the pacing interval. Zero writes frames as fast as
// the output accepts them. The default is [audio.FrameDuration].
func WithFrameInterval(d time.Duration) Option {
	return func(p *Player) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithLead sets how many frames are written ahead of real time.
func WithLead(n int) Option {
	return func(p *Player) {
		if n >= 0 {
			p.lead = n
		}
	}
}

// Player plays one clip at a time on an output stream.
// All methods are safe for concurrent use.
type Player struct {
	out      chan<- audio.AudioFrame
	interval time.Duration
	lead     int

	mu      sync.Mutex
	cancel  chan struct{} // closed to interrupt the current clip
	playing bool
}

// New returns a [Player] writing to out.
func New(out chan<- audio.AudioFrame, opts ...Option) *Player {
	p := &Player{
		out:      out,
		interval: audio.FrameDuration,
		lead:     DefaultLead,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play writes frames to the output and blocks until the last one is due to
// be heard, ctx is done or the clip is interrupted. A clip already playing is
// interrupted first.
func (p *Player) Play(ctx context.Context, frames []audio.AudioFrame) error {
	cancel := p.begin()
	defer p.end(cancel)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, f := range frames {
		if tick != nil && i >= p.lead {
			if err := wait(ctx, cancel, tick); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cancel:
			return ErrInterrupted
		case p.out <- f:
		}
	}

	// Let the frames written ahead drain before reporting completion.
	if tick != nil {
		for range min(p.lead, len(frames)) {
			if err := wait(ctx, cancel, tick); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stop interrupts the clip being played, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interruptLocked()
}

// Playing reports whether a clip is being played.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) begin() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interruptLocked()
	p.cancel = make(chan struct{})
	p.playing = true
	return p.cancel
}

func (p *Player) end(cancel chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == cancel {
		p.cancel = nil
		p.playing = false
	}
}

// interruptLocked must be called with p.mu held.
func (p *Player) interruptLocked() {
	if p.cancel != nil {
		close(p.cancel)
		p.cancel = nil
	}
	p.playing = false
}

func wait(ctx context.Context, cancel <-chan struct{}, tick <-chan time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cancel:
		return ErrInterrupted
	case <-tick:
		return nil
	}
}
