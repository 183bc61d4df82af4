// Package stretch rebuilds a recording with silence inserted after each
// speech chunk, giving the listener time to repeat what was just said.
package stretch

import (
	"fmt"
	"math"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/segment"
)

// Reference selects what the inserted silence is proportional to.
type Reference string

const (
	// ReferenceChunk sizes the silence from the chunk's own length.
	ReferenceChunk Reference = "chunk"
	// ReferenceGap sizes the silence from the natural pause after the chunk.
	ReferenceGap Reference = "gap"
)

// ParseReference converts a flag or config value to a Reference.
// The empty string selects ReferenceChunk.
func ParseReference(s string) (Reference, error) {
	switch Reference(s) {
	case "", ReferenceChunk:
		return ReferenceChunk, nil
	case ReferenceGap:
		return ReferenceGap, nil
	default:
		return "", fmt.Errorf("unknown reference %q (valid: chunk, gap)", s)
	}
}

// Options controls how much silence is inserted.
type Options struct {
	// Percentage of the reference length inserted after each chunk.
	// Negative values are treated as zero.
	Percentage float64

	// MaxSpeech disables insertion after chunks at least this long.
	// Zero disables the cap.
	MaxSpeech time.Duration

	Reference Reference

	// KeepGaps retains the natural pause after each chunk in the output,
	// ahead of the inserted silence.
	KeepGaps bool
}

// Piece is one chunk of the output plan and what follows it.
type Piece struct {
	Chunk   segment.Chunk
	Gap     time.Duration // natural pause copied from the source, KeepGaps only
	Silence time.Duration // generated silence
	Capped  bool          // insertion suppressed by MaxSpeech
}

// Duration returns the output length contributed by the piece.
func (p Piece) Duration() time.Duration {
	return p.Chunk.Duration() + p.Gap + p.Silence
}

// Plan computes the inserted silence for every chunk of seg.
func Plan(seg segment.Segmentation, opts Options) []Piece {
	pct := max(opts.Percentage, 0)
	pieces := make([]Piece, 0, len(seg.Chunks))

	for i, c := range seg.Chunks {
		var gap time.Duration
		if i+1 < len(seg.Chunks) {
			gap = seg.Chunks[i+1].Start - c.End
		}

		p := Piece{Chunk: c}
		if opts.KeepGaps {
			p.Gap = gap
		}

		if opts.MaxSpeech > 0 && c.Duration() >= opts.MaxSpeech {
			p.Capped = true
			pieces = append(pieces, p)
			continue
		}

		ref := c.Duration()
		// The last chunk has no pause after it and falls back to its own length.
		if opts.Reference == ReferenceGap && i+1 < len(seg.Chunks) {
			ref = gap
		}
		p.Silence = scale(ref, pct)
		pieces = append(pieces, p)
	}

	return pieces
}

// scale returns round(ref × pct / 100) at millisecond resolution.
func scale(ref time.Duration, pct float64) time.Duration {
	ms := math.Round(float64(ref.Milliseconds()) * pct / 100)
	return time.Duration(ms) * time.Millisecond
}

// Length returns the duration Render will produce for pieces.
func Length(pieces []Piece) time.Duration {
	var total time.Duration
	for _, p := range pieces {
		total += p.Duration()
	}
	return total
}

// Render assembles the output recording. Chunk and gap audio is copied
// from rec; inserted silence is digital zero in rec's format.
func Render(rec *audio.Recording, pieces []Piece) *audio.Recording {
	b := audio.NewBuilder(rec.SampleRate, rec.Channels, Length(pieces))
	for _, p := range pieces {
		b.Append(rec.Slice(p.Chunk.Start, p.Chunk.End))
		if p.Gap > 0 {
			b.Append(rec.Slice(p.Chunk.End, p.Chunk.End+p.Gap))
		}
		b.AppendSilence(p.Silence)
	}
	return b.Recording()
}
