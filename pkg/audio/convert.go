package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// BytesToSamples decodes little-endian int16 PCM into dst, growing it as
// needed, and returns the filled slice. A trailing odd byte is ignored.
func BytesToSamples(dst []int16, pcm []byte) []int16 {
	n := len(pcm) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return dst
}

// SamplesToBytes encodes samples as little-endian int16 PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ByteDecoder converts a stream of PCM byte chunks into samples. Devices that
// deliver bytes may split a sample across two callbacks; the dangling byte is
// carried into the next chunk. Create one per stream; not safe for concurrent
// use.
type ByteDecoder struct {
	carry   []byte
	buf     []int16
	scratch []byte
	warnOdd sync.Once
}

// Decode returns the complete samples contained in chunk plus any carried
// byte. The returned slice is reused by the next call.
func (d *ByteDecoder) Decode(chunk []byte) []int16 {
	data := chunk
	if len(d.carry) > 0 {
		d.scratch = append(d.scratch[:0], d.carry...)
		d.scratch = append(d.scratch, chunk...)
		data = d.scratch
		d.carry = d.carry[:0]
	}
	if len(data)%2 != 0 {
		d.warnOdd.Do(func() {
			slog.Debug("audio: odd byte count in PCM chunk, carrying over", "bytes", len(data))
		})
		d.carry = append(d.carry, data[len(data)-1])
		data = data[:len(data)-1]
	}
	d.buf = BytesToSamples(d.buf, data)
	return d.buf
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "16000Hz mono".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
