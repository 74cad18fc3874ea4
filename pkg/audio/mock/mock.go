// Package mock provides in-memory implementations of [audio.Platform] and
// [audio.Connection] for unit tests.
//
// Both mocks are safe for concurrent use and record their calls. A zero
// [Connection] collects every frame written to its output stream:
//
//	conn := mock.NewConnection()
//	platform := &mock.Platform{ConnectResult: conn}
//	c, _ := platform.Connect(ctx, "voice-1")
//	c.OutputStream() <- frame
//	conn.Frames() // []audio.AudioFrame{frame}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/dictee/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

var _ audio.Connection = (*Connection)(nil)

// Connection is a mock [audio.Connection] draining its output stream into
// memory.
type Connection struct {
	// DisconnectError is returned by Disconnect.
	DisconnectError error

	out  chan audio.AudioFrame
	done chan struct{}
	once sync.Once

	mu              sync.Mutex
	frames          []audio.AudioFrame
	disconnectCalls int
}

// NewConnection returns a Connection whose output stream is read by a
// background goroutine until Disconnect.
func NewConnection() *Connection {
	c := &Connection{
		out:  make(chan audio.AudioFrame, 16),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-c.done:
				return
			case f := <-c.out:
				c.mu.Lock()
				c.frames = append(c.frames, f)
				c.mu.Unlock()
			}
		}
	}()
	return c
}

// OutputStream implements [audio.Connection].
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.out
}

// Disconnect implements [audio.Connection]. It returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.once.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCalls++
	return c.DisconnectError
}

// Frames returns a copy of every frame received so far.
func (c *Connection) Frames() []audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.AudioFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

// DisconnectCalls returns how many times Disconnect was called.
func (c *Connection) DisconnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectCalls
}

// ─── Platform ─────────────────────────────────────────────────────────────────

var _ audio.Platform = (*Platform)(nil)

// Platform is a mock [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect.
	ConnectResult audio.Connection

	// ConnectError is returned by Connect.
	ConnectError error

	connectCalls []string
}

// Connect implements [audio.Platform]. It records channelID.
func (p *Platform) Connect(_ context.Context, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectCalls = append(p.connectCalls, channelID)
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	return p.ConnectResult, nil
}

// ConnectCalls returns the channel IDs passed to Connect, in order.
func (p *Platform) ConnectCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.connectCalls...)
}
