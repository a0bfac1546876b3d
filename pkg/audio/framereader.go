package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// FrameReader splits a raw little-endian int16 PCM stream into fixed-length
// frames.
type FrameReader struct {
	r           *bufio.Reader
	frameLength int
	buf         []byte
	frame       []int16
}

// NewFrameReader returns a FrameReader yielding frames of frameLength samples.
func NewFrameReader(r io.Reader, frameLength int) (*FrameReader, error) {
	if frameLength <= 0 {
		return nil, ErrInvalidFrameLength
	}
	return &FrameReader{
		r:           bufio.NewReaderSize(r, frameLength*4),
		frameLength: frameLength,
		buf:         make([]byte, frameLength*2),
	}, nil
}

// FrameLength returns the number of samples per frame.
func (fr *FrameReader) FrameLength() int { return fr.frameLength }

// Next returns the next frame. The returned slice is only valid until the
// next call. A trailing partial frame at the end of the stream is dropped and
// io.EOF is returned.
func (fr *FrameReader) Next() ([]int16, error) {
	_, err := io.ReadFull(fr.r, fr.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("audio: read frame: %w", err)
	}
	fr.frame = BytesToSamples(fr.frame, fr.buf)
	return fr.frame, nil
}

var _ FrameSource = (*FrameReader)(nil)
