package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Format describes the sample rate and channel count of PCM data.
type Format struct {
	SampleRate int
	Channels   int
}

// Voice is the format Discord voice expects: 48 kHz stereo.
var Voice = Format{SampleRate: 48000, Channels: 2}

// FrameDuration is the length of one voice frame.
const FrameDuration = 20 * time.Millisecond

// FrameBytes returns the size of one frame of d in format f.
func (f Format) FrameBytes(d time.Duration) int {
	return int(int64(f.SampleRate)*int64(d)/int64(time.Second)) * f.Channels * 2
}

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// FormatConverter brings PCM into a target format. It logs once on the first
// mismatch it converts. Use one per stream.
type FormatConverter struct {
	Target Format
	warned sync.Once
}

// Convert returns pcm, recorded in format from, in the target format.
// Data already in the target format is returned as is. Odd-length input is
// truncated to whole samples.
func (c *FormatConverter) Convert(pcm []byte, from Format) []byte {
	pcm = pcm[:len(pcm)&^1]
	if from == c.Target {
		return pcm
	}
	c.warned.Do(func() {
		slog.Debug("audio: converting format", "from", from.String(), "to", c.Target.String())
	})

	if from.SampleRate != c.Target.SampleRate {
		pcm = Resample16(pcm, from.Channels, from.SampleRate, c.Target.SampleRate)
	}
	switch {
	case from.Channels == 1 && c.Target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case from.Channels == 2 && c.Target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return pcm
}

// Split cuts pcm in format f into frames of length d. The last frame is
// padded with silence.
func Split(pcm []byte, f Format, d time.Duration) []AudioFrame {
	size := f.FrameBytes(d)
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	frames := make([]AudioFrame, 0, (len(pcm)+size-1)/size)
	for i := 0; i < len(pcm); i += size {
		chunk := make([]byte, size)
		copy(chunk, pcm[i:])
		frames = append(frames, AudioFrame{
			Data:       chunk,
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
			Timestamp:  time.Duration(len(frames)) * d,
		})
	}
	return frames
}

// MonoToStereo duplicates each int16 sample into an L/R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages each L/R pair.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / 4
	out := make([]byte, n*2)
	for i := range n {
		avg := (int32(sample(pcm, i*2)) + int32(sample(pcm, i*2+1))) / 2
		putSample(out, i, int16(avg))
	}
	return out
}

// Resample16 converts interleaved int16 PCM with the given channel count from
// src Hz to dst Hz by linear interpolation.
func Resample16(pcm []byte, channels, src, dst int) []byte {
	if src <= 0 || dst <= 0 || channels <= 0 || src == dst {
		return pcm
	}
	in := len(pcm) / (2 * channels)
	if in == 0 {
		return nil
	}
	outFrames := int(int64(in) * int64(dst) / int64(src))
	out := make([]byte, outFrames*channels*2)
	ratio := float64(src) / float64(dst)

	for i := range outFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, in-1)
		for ch := range channels {
			a := float64(sample(pcm, idx*channels+ch))
			b := float64(sample(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(a*(1-frac)+b*frac))
		}
	}
	return out
}

func sample(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}
