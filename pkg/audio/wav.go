package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAV format tags.
const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// FileSource yields fixed-length frames from a WAV container.
type FileSource struct {
	dec         *wav.Decoder
	format      Format
	frameLength int

	buf     *goaudio.IntBuffer
	pending []int16
	frame   []int16
	eof     bool
}

// OpenFileSource validates that r holds a WAV file of mono 16-bit PCM at
// sampleRate and returns a source of frameLength-sample frames. A mismatch
// is reported as a *FormatError before any audio data is read.
func OpenFileSource(r io.ReadSeeker, sampleRate, frameLength int) (*FileSource, error) {
	if frameLength <= 0 {
		return nil, ErrInvalidFrameLength
	}
	want := Format{SampleRate: sampleRate, Channels: 1}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, &FormatError{Want: want, Reason: "not a valid WAV file"}
	}
	got := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if got != want || int(dec.BitDepth) != BitDepth {
		return nil, &FormatError{Want: want, Got: got, BitDepth: int(dec.BitDepth)}
	}

	switch tag := dec.WavAudioFormat; tag {
	case wavFormatPCM:
	case wavFormatExtensible:
		sub, err := extensibleSubFormat(r)
		if err != nil {
			return nil, &FormatError{Want: want, Got: got, BitDepth: BitDepth, Reason: "unreadable extensible format header: " + err.Error()}
		}
		if sub != wavFormatPCM {
			return nil, &FormatError{Want: want, Got: got, BitDepth: BitDepth, Reason: fmt.Sprintf("extensible sub-format %#04x is not PCM", sub)}
		}
		// The header walk moved r; decode from a fresh start.
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("audio: rewind wav: %w", err)
		}
		dec = wav.NewDecoder(r)
		if !dec.IsValidFile() {
			return nil, &FormatError{Want: want, Reason: "not a valid WAV file"}
		}
	default:
		return nil, &FormatError{Want: want, Got: got, BitDepth: BitDepth, Reason: fmt.Sprintf("format tag %#04x is not PCM", tag)}
	}

	return &FileSource{
		dec:         dec,
		format:      got,
		frameLength: frameLength,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, frameLength),
			SourceBitDepth: BitDepth,
		},
		frame: make([]int16, frameLength),
	}, nil
}

// extensibleSubFormat returns the format code at the start of the sub-format
// GUID of a WAVE_FORMAT_EXTENSIBLE fmt chunk.
func extensibleSubFormat(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, err
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		// 16-byte base format, cbSize, valid bits and channel mask precede
		// the GUID.
		var hdr [26]byte
		if ch.Size < len(hdr) {
			return 0, fmt.Errorf("fmt chunk of %d bytes is too short", ch.Size)
		}
		if _, err := io.ReadFull(ch, hdr[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint16(hdr[24:]), nil
	}
}

// Format returns the validated stream format.
func (s *FileSource) Format() Format { return s.format }

// Next returns the next full frame. The returned slice is only valid until
// the next call. Samples left over at the end of the file that do not fill a
// whole frame are dropped and io.EOF is returned.
func (s *FileSource) Next() ([]int16, error) {
	for len(s.pending) < s.frameLength && !s.eof {
		n, err := s.dec.PCMBuffer(s.buf)
		if err != nil && !isEOF(err) {
			return nil, fmt.Errorf("audio: read wav: %w", err)
		}
		if n == 0 || err != nil {
			s.eof = true
		}
		for _, v := range s.buf.Data[:n] {
			s.pending = append(s.pending, int16(v))
		}
	}
	if len(s.pending) < s.frameLength {
		s.pending = s.pending[:0]
		return nil, io.EOF
	}
	copy(s.frame, s.pending[:s.frameLength])
	s.pending = append(s.pending[:0], s.pending[s.frameLength:]...)
	return s.frame, nil
}

var _ FrameSource = (*FileSource)(nil)

// WAVRecorder writes raw samples to a mono 16-bit PCM WAV file as they
// arrive. The header is finalized on Close. WAVRecorder is safe for
// concurrent use.
type WAVRecorder struct {
	mu     sync.Mutex
	dst    io.WriteSeeker
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	closed bool
	count  int
}

// NewWAVRecorder returns a recorder writing to dst. If dst also implements
// io.Closer it is closed by Close.
func NewWAVRecorder(dst io.WriteSeeker, sampleRate int) *WAVRecorder {
	return &WAVRecorder{
		dst: dst,
		enc: wav.NewEncoder(dst, sampleRate, BitDepth, 1, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: BitDepth,
		},
	}
}

// ErrRecorderClosed is returned by WriteSamples after Close.
var ErrRecorderClosed = errors.New("audio: recorder closed")

// WriteSamples appends samples to the file.
func (r *WAVRecorder) WriteSamples(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	r.buf.Data = r.buf.Data[:0]
	for _, s := range samples {
		r.buf.Data = append(r.buf.Data, int(s))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	r.count += len(samples)
	return nil
}

// Samples returns the number of samples written so far.
func (r *WAVRecorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close finalizes the WAV header and closes the destination if it is an
// io.Closer. Calling Close more than once returns nil.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.enc.Close()
	if err != nil {
		err = fmt.Errorf("audio: finalize wav: %w", err)
	}
	if c, ok := r.dst.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audio: close wav: %w", cerr)
		}
	}
	return err
}

var _ SampleSink = (*WAVRecorder)(nil)
