package discord

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	outputChannelBuffer = 64

	// idleAfter is how long the output may stay empty before the bot stops
	// speaking.
	idleAfter = 200 * time.Millisecond
)

// Connection wraps a discordgo.VoiceConnection as an output-only
// [audio.Connection]. Frames written to the output stream are converted to
// 48 kHz stereo, cut into Opus frames and sent.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc     *discordgo.VoiceConnection
	output chan audio.AudioFrame

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC tears down the voice connection. Overridden in tests.
	disconnectVC func() error
}

func newConnection(vc *discordgo.VoiceConnection) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}
	go c.sendLoop()
	return c, nil
}

// OutputStream returns the channel clips are written to.
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	return c.output
}

// Disconnect leaves the voice channel and stops the send loop. Calls after
// the first return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// sendLoop encodes frames from the output stream and hands the packets to
// discordgo, which paces them onto the UDP socket. Speaking is signalled
// while frames arrive and cleared after idleAfter without any.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "err", err)
		return
	}
	conv := audio.FormatConverter{Target: audio.Voice}

	idle := time.NewTimer(idleAfter)
	idle.Stop()
	defer idle.Stop()

	speaking := false
	var buf []byte

	for {
		select {
		case <-c.done:
			if speaking {
				c.setSpeaking(false)
			}
			return

		case <-idle.C:
			// Flush the tail of the last clip padded with silence.
			if len(buf) > 0 {
				buf = append(buf, make([]byte, opusFrameBytes-len(buf))...)
				if !c.send(enc, buf) {
					return
				}
				buf = buf[:0]
			}
			if speaking {
				c.setSpeaking(false)
				speaking = false
			}

		case frame := <-c.output:
			if !speaking {
				c.setSpeaking(true)
				speaking = true
			}
			idle.Reset(idleAfter)

			buf = append(buf, conv.Convert(frame.Data, audio.Format{SampleRate: frame.SampleRate, Channels: frame.Channels})...)
			for len(buf) >= opusFrameBytes {
				if !c.send(enc, buf[:opusFrameBytes]) {
					return
				}
				buf = buf[opusFrameBytes:]
			}
		}
	}
}

// send encodes and queues one frame. It reports false once the connection
// is closed.
func (c *Connection) send(enc *opusEncoder, pcm []byte) bool {
	packet, err := enc.encode(pcm)
	if err != nil {
		slog.Warn("discord: dropping frame", "err", err)
		return true
	}
	select {
	case c.vc.OpusSend <- packet:
		return true
	case <-c.done:
		return false
	}
}

func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "err", err)
	}
}
