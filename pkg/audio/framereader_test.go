package audio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/MrWong99/hearken/pkg/audio"
)

func TestFrameReader_FullFrames(t *testing.T) {
	t.Parallel()

	const frameLength = 4
	samples := ramp(0, 12)
	fr, err := audio.NewFrameReader(bytes.NewReader(samplesToBytes(samples)), frameLength)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}

	for i := range 3 {
		frame, err := fr.Next()
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		want := samples[i*frameLength : (i+1)*frameLength]
		if !slices.Equal(frame, want) {
			t.Errorf("frame %d = %v, want %v", i, frame, want)
		}
	}
	if _, err := fr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after last frame: err = %v, want io.EOF", err)
	}
}

func TestFrameReader_DropsTrailingPartialFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		samples    int
		wantFrames int
	}{
		{name: "empty", samples: 0, wantFrames: 0},
		{name: "shorter than one frame", samples: 511, wantFrames: 0},
		{name: "one frame exactly", samples: 512, wantFrames: 1},
		{name: "one frame plus remainder", samples: 512 + 100, wantFrames: 1},
		{name: "many frames plus remainder", samples: 512*7 + 511, wantFrames: 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fr, err := audio.NewFrameReader(bytes.NewReader(samplesToBytes(ramp(0, tc.samples))), 512)
			if err != nil {
				t.Fatalf("NewFrameReader: %v", err)
			}
			n, err := audio.ForEachFrame(context.Background(), fr, func(frame []int16) error {
				if len(frame) != 512 {
					t.Errorf("frame length = %d, want 512", len(frame))
				}
				return nil
			})
			if err != nil {
				t.Fatalf("ForEachFrame: %v", err)
			}
			if n != tc.wantFrames {
				t.Errorf("frames = %d, want %d", n, tc.wantFrames)
			}
		})
	}
}

func TestFrameReader_PropagatesReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	fr, err := audio.NewFrameReader(io.MultiReader(
		bytes.NewReader(samplesToBytes(ramp(0, 4))),
		&failingReader{err: boom},
	), 8)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	if _, err := fr.Next(); !errors.Is(err, boom) {
		t.Errorf("Next err = %v, want %v", err, boom)
	}
}

func TestNewFrameReader_InvalidFrameLength(t *testing.T) {
	t.Parallel()

	if _, err := audio.NewFrameReader(bytes.NewReader(nil), 0); !errors.Is(err, audio.ErrInvalidFrameLength) {
		t.Errorf("err = %v, want ErrInvalidFrameLength", err)
	}
}

func TestForEachFrame_StopsOnCallbackError(t *testing.T) {
	t.Parallel()

	fr, _ := audio.NewFrameReader(bytes.NewReader(samplesToBytes(ramp(0, 40))), 4)
	stop := errors.New("stop")
	calls := 0
	n, err := audio.ForEachFrame(context.Background(), fr, func([]int16) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want %v", err, stop)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}

func TestForEachFrame_HonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fr, _ := audio.NewFrameReader(bytes.NewReader(samplesToBytes(ramp(0, 40))), 4)
	n, err := audio.ForEachFrame(ctx, fr, func([]int16) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
