package discord

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/dictee/pkg/audio"
)

// Discord voice is 48 kHz stereo Opus in 20 ms frames.
var (
	// opusFrameSize is the number of samples per channel in one frame.
	opusFrameSize = audio.Voice.SampleRate * int(audio.FrameDuration.Milliseconds()) / 1000 // 960

	// opusFrameBytes is the PCM size of one frame: 960 × 2 channels × 2 bytes.
	opusFrameBytes = audio.Voice.FrameBytes(audio.FrameDuration) // 3840
)

// maxOpusPacket bounds the encoded size of one frame.
const maxOpusPacket = 4000

type opusEncoder struct {
	enc *gopus.Encoder
}

func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(audio.Voice.SampleRate, audio.Voice.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encode encodes one frame of little-endian int16 PCM.
func (e *opusEncoder) encode(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	packet, err := e.enc.Encode(samples, opusFrameSize, maxOpusPacket)
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return packet, nil
}
