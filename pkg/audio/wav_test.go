package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"slices"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/MrWong99/hearken/pkg/audio"
)

// writeWAV encodes samples into a WAV file on fs with the given layout.
func writeWAV(t *testing.T, fs afero.Fs, path string, rate, bitDepth, channels int, samples []int16) {
	t.Helper()
	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func openFile(t *testing.T, fs afero.Fs, path string) afero.File {
	t.Helper()
	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestOpenFileSource_YieldsFramesInOrder(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	samples := ramp(-1000, 512*3+200)
	writeWAV(t, fs, "in.wav", 16000, 16, 1, samples)

	src, err := audio.OpenFileSource(openFile(t, fs, "in.wav"), 16000, 512)
	if err != nil {
		t.Fatalf("OpenFileSource: %v", err)
	}
	if got := src.Format(); got != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("Format() = %v", got)
	}

	var got []int16
	n, err := audio.ForEachFrame(context.Background(), src, func(frame []int16) error {
		got = append(got, frame...)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachFrame: %v", err)
	}
	if n != 3 {
		t.Errorf("frames = %d, want 3 (trailing 200 samples dropped)", n)
	}
	if !slices.Equal(got, samples[:512*3]) {
		t.Error("frame contents do not match the first three frames of input")
	}
}

func TestOpenFileSource_RejectsWrongFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     int
		bitDepth int
		channels int
	}{
		{name: "wrong sample rate", rate: 44100, bitDepth: 16, channels: 1},
		{name: "stereo", rate: 16000, bitDepth: 16, channels: 2},
		{name: "8-bit", rate: 16000, bitDepth: 8, channels: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			writeWAV(t, fs, "bad.wav", tc.rate, tc.bitDepth, tc.channels, ramp(0, 1024))

			_, err := audio.OpenFileSource(openFile(t, fs, "bad.wav"), 16000, 512)
			var fe *audio.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FormatError", err)
			}
			if fe.Got.SampleRate != tc.rate || fe.Got.Channels != tc.channels || fe.BitDepth != tc.bitDepth {
				t.Errorf("FormatError = %+v, want rate=%d channels=%d depth=%d", fe, tc.rate, tc.channels, tc.bitDepth)
			}
		})
	}
}

// extensibleWAV builds a mono 16-bit 16 kHz WAVE_FORMAT_EXTENSIBLE file whose
// sub-format GUID starts with sub.
func extensibleWAV(sub uint16, samples []int16) []byte {
	var fmtChunk bytes.Buffer
	for _, v := range []any{
		uint16(0xFFFE), uint16(1), uint32(16000), uint32(32000), uint16(2), uint16(16),
		uint16(22), uint16(16), uint32(4), sub,
		[14]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71},
	} {
		_ = binary.Write(&fmtChunk, binary.LittleEndian, v)
	}

	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("fmt ")
	_ = binary.Write(&body, binary.LittleEndian, uint32(fmtChunk.Len()))
	body.Write(fmtChunk.Bytes())
	body.WriteString("data")
	_ = binary.Write(&body, binary.LittleEndian, uint32(2*len(samples)))
	_ = binary.Write(&body, binary.LittleEndian, samples)

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestOpenFileSource_RequiresPCM(t *testing.T) {
	t.Parallel()

	t.Run("float format tag", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		f, err := fs.Create("float.wav")
		if err != nil {
			t.Fatal(err)
		}
		// Format tag 3 is IEEE float; the layout is otherwise acceptable.
		enc := wav.NewEncoder(f, 16000, 16, 1, 3)
		if err := enc.Write(&goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
			Data:           make([]int, 1024),
			SourceBitDepth: 16,
		}); err != nil {
			t.Fatal(err)
		}
		if err := enc.Close(); err != nil {
			t.Fatal(err)
		}
		f.Close()

		_, err = audio.OpenFileSource(openFile(t, fs, "float.wav"), 16000, 512)
		var fe *audio.FormatError
		if !errors.As(err, &fe) || fe.Reason == "" {
			t.Fatalf("err = %v, want *FormatError naming the format tag", err)
		}
	})

	t.Run("extensible float", func(t *testing.T) {
		t.Parallel()

		_, err := audio.OpenFileSource(bytes.NewReader(extensibleWAV(3, ramp(0, 1024))), 16000, 512)
		var fe *audio.FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v, want *FormatError", err)
		}
	})

	t.Run("extensible PCM", func(t *testing.T) {
		t.Parallel()

		src, err := audio.OpenFileSource(bytes.NewReader(extensibleWAV(1, ramp(0, 1024))), 16000, 512)
		if err != nil {
			t.Fatalf("OpenFileSource: %v", err)
		}
		frame, err := src.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !slices.Equal(frame, ramp(0, 512)) {
			t.Error("first frame does not match the encoded samples")
		}
	})
}

func TestOpenFileSource_RejectsNonWAV(t *testing.T) {
	t.Parallel()

	_, err := audio.OpenFileSource(bytes.NewReader([]byte("definitely not RIFF")), 16000, 512)
	var fe *audio.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FormatError", err)
	}
	if fe.Reason == "" {
		t.Error("expected a Reason for an unreadable header")
	}
}

func TestWAVRecorder_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	f, err := fs.Create("rec.wav")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rec := audio.NewWAVRecorder(f, 16000)

	want := ramp(0, 700)
	// Arbitrary chunking must not matter.
	for _, chunk := range [][]int16{want[:1], want[1:300], want[300:301], want[301:]} {
		if err := rec.WriteSamples(chunk); err != nil {
			t.Fatalf("WriteSamples: %v", err)
		}
	}
	if got := rec.Samples(); got != len(want) {
		t.Errorf("Samples() = %d, want %d", got, len(want))
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := rec.WriteSamples(want); !errors.Is(err, audio.ErrRecorderClosed) {
		t.Errorf("WriteSamples after Close: err = %v, want ErrRecorderClosed", err)
	}

	src, err := audio.OpenFileSource(openFile(t, fs, "rec.wav"), 16000, 100)
	if err != nil {
		t.Fatalf("OpenFileSource: %v", err)
	}
	var got []int16
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, frame...)
	}
	if !slices.Equal(got, want) {
		t.Errorf("recorded %d samples, want %d identical samples", len(got), len(want))
	}
}
