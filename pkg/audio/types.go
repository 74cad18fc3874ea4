package audio

import "time"

// AudioFrame is one chunk of interleaved little-endian int16 PCM.
// Frames handed to a [Connection] are 20 ms long at 48 kHz stereo; decoders
// may produce other formats that [FormatConverter] brings in line.
type AudioFrame struct {
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp is the offset of the frame from the start of its clip.
	Timestamp time.Duration
}
