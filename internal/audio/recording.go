package audio

import (
	"math"
	"time"
)

// maxAmplitude is the full-scale value of a signed 16-bit sample.
const maxAmplitude = 1 << 15

// Recording is a fully decoded signal held in memory as interleaved signed
// 16-bit PCM. A Recording belongs to the pipeline invocation that decoded it
// and is not safe for concurrent mutation.
type Recording struct {
	Samples    []int16 // Interleaved samples, Channels per frame.
	SampleRate int     // Frames per second.
	Channels   int     // Samples per frame.
}

// NewRecording wraps interleaved samples. Trailing samples that do not form a
// whole frame are dropped.
func NewRecording(samples []int16, sampleRate, channels int) *Recording {
	if channels < 1 {
		channels = 1
	}
	whole := len(samples) - len(samples)%channels
	return &Recording{Samples: samples[:whole], SampleRate: sampleRate, Channels: channels}
}

// Silence returns a digitally silent recording of duration d.
func Silence(d time.Duration, sampleRate, channels int) *Recording {
	frames := framesFor(d, sampleRate)
	return &Recording{
		Samples:    make([]int16, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Frames returns the number of frames in the recording.
func (r *Recording) Frames() int {
	if r.Channels == 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// Duration returns the playing time of the recording.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.SampleRate)
}

// Length returns the duration rounded to whole milliseconds, the resolution
// used by detection and segmentation.
func (r *Recording) Length() time.Duration {
	return r.Duration().Round(time.Millisecond)
}

// FrameAt converts an offset to a frame index, clamped to [0, Frames()].
func (r *Recording) FrameAt(d time.Duration) int {
	f := framesFor(d, r.SampleRate)
	return min(max(f, 0), r.Frames())
}

// Slice returns the half-open span [start, end) of the recording. Offsets are
// clamped to the recording bounds; an inverted span yields an empty recording.
// The result shares sample storage with r and must be treated as read-only.
func (r *Recording) Slice(start, end time.Duration) *Recording {
	from, to := r.FrameAt(start), r.FrameAt(end)
	if to < from {
		to = from
	}
	return &Recording{
		Samples:    r.Samples[from*r.Channels : to*r.Channels],
		SampleRate: r.SampleRate,
		Channels:   r.Channels,
	}
}

// RMS returns the root mean square of all samples, in sample units.
func (r *Recording) RMS() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(r.Samples)))
}

// DBFS returns the loudness of the recording relative to full scale.
// A silent recording returns negative infinity.
func (r *Recording) DBFS() float64 {
	return RatioToDB(r.RMS() / maxAmplitude)
}

// RatioToDB converts an amplitude ratio to decibels.
func RatioToDB(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(ratio)
}

// DBToAmplitude converts a dBFS threshold to an RMS value in sample units.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20) * maxAmplitude
}

// framesFor converts a duration to a whole number of frames, truncating.
func framesFor(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// Builder assembles an output recording from slices and silences.
type Builder struct {
	sampleRate int
	channels   int
	samples    []int16
}

// NewBuilder returns a Builder for the given format. capacity is a hint for
// the expected output length.
func NewBuilder(sampleRate, channels int, capacity time.Duration) *Builder {
	return &Builder{
		sampleRate: sampleRate,
		channels:   channels,
		samples:    make([]int16, 0, framesFor(capacity, sampleRate)*channels),
	}
}

// Append copies rec onto the end of the output. rec must share the
// builder's format.
func (b *Builder) Append(rec *Recording) {
	b.samples = append(b.samples, rec.Samples...)
}

// AppendSilence extends the output with d of digital silence.
func (b *Builder) AppendSilence(d time.Duration) {
	n := framesFor(d, b.sampleRate) * b.channels
	b.samples = append(b.samples, make([]int16, n)...)
}

// Duration returns the length of the output assembled so far.
func (b *Builder) Duration() time.Duration {
	if b.sampleRate == 0 || b.channels == 0 {
		return 0
	}
	return time.Duration(len(b.samples)/b.channels) * time.Second / time.Duration(b.sampleRate)
}

// Recording returns the assembled output. The Builder must not be used
// afterwards.
func (b *Builder) Recording() *Recording {
	return &Recording{Samples: b.samples, SampleRate: b.sampleRate, Channels: b.channels}
}
