package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM data in a canonical 44-byte WAV header
func EncodeWAV(pcm []byte, f Format) []byte {
	if f.SampleRate == 0 {
		f.SampleRate = 16000
	}
	if f.Channels == 0 {
		f.Channels = 1
	}
	if f.BitDepth == 0 {
		f.BitDepth = 16
	}

	byteRate := f.SampleRate * f.Channels * f.BitDepth / 8
	blockAlign := f.Channels * f.BitDepth / 8
	dataSize := len(pcm)

	out := make([]byte, wavHeaderSize+dataSize)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))
	copy(out[wavHeaderSize:], pcm)

	return out
}

// DecodeWAV walks the RIFF chunks and returns the format and PCM payload.
// A streaming data size (0 or 0xFFFFFFFF) is taken to run to end of file.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidFormat)
	}

	var f Format
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		raw := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		size := int(raw)
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidFormat)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			f.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrInvalidFormat)
			}
			end := body + size
			if raw == 0 || raw == math.MaxUint32 || end > len(data) || end < body {
				end = len(data)
			}
			return f, data[body:end], nil
		}

		if size < 0 {
			break
		}
		// chunks are word aligned
		pos = body + size + size%2
	}
	return Format{}, nil, fmt.Errorf("%w: no data chunk", ErrInvalidFormat)
}

// WAVDuration returns the play length of a WAV file, false if unknown
func WAVDuration(data []byte) (time.Duration, bool) {
	f, pcm, err := DecodeWAV(data)
	if err != nil || f.BytesPerSecond() <= 0 {
		return 0, false
	}
	return f.Duration(len(pcm)), true
}

// RMS computes the root mean square level of 16-bit PCM, normalized to 0-1
func RMS(pcm []byte) float64 {
	var sum float64
	var count int
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
