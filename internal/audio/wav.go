package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCMFormat is the WAVE format tag for integer PCM.
const wavPCMFormat = 1

// readWAV decodes a PCM WAV stream without going through ffmpeg.
// Samples of any supported bit depth are rescaled to 16 bits.
func readWAV(r io.ReadSeeker) (*Recording, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid PCM WAV file", ErrDecodeFailed)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: missing WAV format information", ErrDecodeFailed)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v, buf.SourceBitDepth)
	}
	return NewRecording(samples, buf.Format.SampleRate, buf.Format.NumChannels), nil
}

// toInt16 rescales a sample decoded at the given bit depth.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with a midpoint of 128.
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// writeWAV encodes rec as 16-bit PCM WAV.
func writeWAV(w io.WriteSeeker, rec *Recording) error {
	enc := wav.NewEncoder(w, rec.SampleRate, 16, rec.Channels, wavPCMFormat)

	data := make([]int, len(rec.Samples))
	for i, s := range rec.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: rec.Channels, SampleRate: rec.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return nil
}

// encodePCM serializes samples as raw s16le, the format ffmpeg reads on stdin.
func encodePCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// decodePCM parses raw s16le bytes. A trailing odd byte is ignored.
func decodePCM(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out
}
