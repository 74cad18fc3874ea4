// Package mp3 decodes MP3 clips into voice-ready PCM frames.
package mp3

import (
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/MrWong99/dictee/pkg/audio"
)

// ErrEmpty is returned for a stream that decodes to no audio.
var ErrEmpty = errors.New("mp3: no audio in stream")

// Decode reads a whole MP3 stream and returns it as 20 ms frames of 48 kHz
// stereo PCM.
func Decode(r io.Reader) ([]audio.AudioFrame, error) {
	pcm, rate, err := decodePCM(r)
	if err != nil {
		return nil, err
	}
	// go-mp3 always produces 16-bit stereo.
	src := audio.Format{SampleRate: rate, Channels: 2}
	conv := audio.FormatConverter{Target: audio.Voice}
	return audio.Split(conv.Convert(pcm, src), audio.Voice, audio.FrameDuration), nil
}

func decodePCM(r io.Reader) ([]byte, int, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: open stream: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: decode: %w", err)
	}
	if len(pcm) == 0 {
		return nil, 0, ErrEmpty
	}
	return pcm, d.SampleRate(), nil
}
