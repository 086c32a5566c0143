// Package wav serializes mono float samples into a 16-bit PCM RIFF/WAVE
// container.
package wav

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	// HeaderSize is the size of the canonical PCM header.
	HeaderSize = 44

	Channels      = 1
	BitsPerSample = 16

	formatPCM  = 1
	blockAlign = Channels * BitsPerSample / 8
)

// Encode returns the WAV container for samples. It never fails for the
// in-memory writer it uses.
func Encode(samples []float32, sampleRate int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(samples)*2))
	_ = EncodeTo(buf, samples, sampleRate)
	return buf.Bytes()
}

// EncodeTo writes the WAV container for samples to w.
func EncodeTo(w io.Writer, samples []float32, sampleRate int) error {
	dataSize := uint32(len(samples) * 2)

	header := make([]byte, HeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], Channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], BitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return err
	}

	payload := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(ToPCM16(s)))
	}
	_, err := w.Write(payload)
	return err
}

// ToPCM16 clamps s to [-1, 1] and scales negatives by 32768 and positives by
// 32767, truncating toward zero.
func ToPCM16(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7fff)
}
