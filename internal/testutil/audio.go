package testutil

import (
	"encoding/binary"
	"testing"
	"time"
)

// GenerateTestAudio generates a silent 16kHz mono 16-bit WAV of the given duration
func GenerateTestAudio(t *testing.T, duration time.Duration) []byte {
	t.Helper()

	sampleRate := 16000
	channels := 1
	bitsPerSample := 16

	numSamples := int(duration.Seconds() * float64(sampleRate))
	dataSize := numSamples * channels * (bitsPerSample / 8)
	byteRate := sampleRate * channels * bitsPerSample / 8

	audio := make([]byte, 44+dataSize)
	copy(audio[0:4], "RIFF")
	binary.LittleEndian.PutUint32(audio[4:8], uint32(36+dataSize))
	copy(audio[8:12], "WAVE")
	copy(audio[12:16], "fmt ")
	binary.LittleEndian.PutUint32(audio[16:20], 16)
	binary.LittleEndian.PutUint16(audio[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(audio[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(audio[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(audio[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(audio[32:34], uint16(channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(audio[34:36], uint16(bitsPerSample))
	copy(audio[36:40], "data")
	binary.LittleEndian.PutUint32(audio[40:44], uint32(dataSize))

	return audio
}

// PCMChunks splits n bytes of silent PCM into chunks of size
func PCMChunks(n, size int) [][]byte {
	var chunks [][]byte
	for n > 0 {
		c := min(size, n)
		chunks = append(chunks, make([]byte, c))
		n -= c
	}
	return chunks
}
