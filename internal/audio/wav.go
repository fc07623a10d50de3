// Package audio provides minimal WAV framing for mono PCM16 clips. The
// relay treats payloads as opaque bytes; this package exists for the
// pieces that fabricate or inspect audio locally, like the mock
// synthesizer and the probe tool.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize    = 44
	numChannels   = 1
	bitsPerSample = 16
	formatPCM     = 1

	// DefaultSampleRate is used when a caller passes a non-positive rate.
	DefaultSampleRate = 16000
)

var ErrNotWAV = errors.New("audio: not a PCM16 WAV stream")

// EncodeWAVPCM16LE wraps raw little-endian PCM16 mono samples in a WAV
// container and returns the complete file bytes.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LETo streams the WAV container for pcm to out.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	hdr := make([]byte, headerSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(headerSize-8+len(pcm)))
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], formatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], numChannels)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*numChannels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(hdr[32:34], numChannels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := out.Write(hdr); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

// DecodeWAVPCM16LE extracts the raw PCM samples and sample rate from a
// WAV file produced by EncodeWAVPCM16LE. It rejects anything that is
// not mono PCM16.
func DecodeWAVPCM16LE(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < headerSize ||
		string(data[0:4]) != "RIFF" ||
		string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " {
		return nil, 0, ErrNotWAV
	}
	if binary.LittleEndian.Uint16(data[20:22]) != formatPCM {
		return nil, 0, fmt.Errorf("%w: compressed format", ErrNotWAV)
	}
	if binary.LittleEndian.Uint16(data[22:24]) != numChannels ||
		binary.LittleEndian.Uint16(data[34:36]) != bitsPerSample {
		return nil, 0, fmt.Errorf("%w: expected mono 16-bit", ErrNotWAV)
	}
	if string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}
	rate := int(binary.LittleEndian.Uint32(data[24:28]))
	size := binary.LittleEndian.Uint32(data[40:44])
	if int(size) > len(data)-headerSize {
		return nil, 0, fmt.Errorf("%w: truncated data chunk", ErrNotWAV)
	}
	return data[headerSize : headerSize+int(size)], rate, nil
}
