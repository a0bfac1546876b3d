package audio_test

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/hearken/pkg/audio"
)

func TestSampleQueue_PopFrame(t *testing.T) {
	t.Parallel()

	q := audio.NewSampleQueue()
	q.Append(ramp(0, 5))

	frame := make([]int16, 4)
	if !q.PopFrame(frame) {
		t.Fatal("PopFrame returned false with 5 samples buffered")
	}
	if !slices.Equal(frame, []int16{0, 1, 2, 3}) {
		t.Errorf("frame = %v", frame)
	}
	if q.PopFrame(frame) {
		t.Error("PopFrame returned true with 1 sample buffered")
	}
	if got := q.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if got := q.Reset(); got != 1 {
		t.Errorf("Reset() = %d, want 1", got)
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after Reset = %d, want 0", got)
	}
}

func TestSampleQueue_OrderAcrossChunkSizes(t *testing.T) {
	t.Parallel()

	const frameLength = 512
	input := ramp(-10000, frameLength*20+37)

	for _, chunk := range []int{1, 7, 160, 511, 512, 513, 4096} {
		q := audio.NewSampleQueue()
		var got []int16
		frame := make([]int16, frameLength)
		for i := 0; i < len(input); i += chunk {
			q.Append(input[i:min(i+chunk, len(input))])
			for q.PopFrame(frame) {
				got = append(got, frame...)
			}
		}
		if !slices.Equal(got, input[:frameLength*20]) {
			t.Errorf("chunk %d: frames out of order or incomplete (%d samples)", chunk, len(got))
		}
		if q.Len() != 37 {
			t.Errorf("chunk %d: remainder = %d, want 37", chunk, q.Len())
		}
	}
}

func TestSampleQueue_ConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const (
		frameLength = 64
		frames      = 200
	)
	input := ramp(0, frameLength*frames)
	q := audio.NewSampleQueue()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < len(input); i += 33 {
			q.Append(input[i:min(i+33, len(input))])
		}
	}()

	var got []int16
	frame := make([]int16, frameLength)
	deadline := time.After(5 * time.Second)
	for len(got) < len(input) {
		if q.PopFrame(frame) {
			got = append(got, frame...)
			continue
		}
		select {
		case <-q.Notify():
		case <-deadline:
			t.Fatalf("timed out with %d/%d samples", len(got), len(input))
		case <-time.After(10 * time.Millisecond):
		}
	}
	wg.Wait()

	if !slices.Equal(got, input) {
		t.Error("consumer observed samples out of order")
	}
}

func TestSampleQueue_NotifyCoalesces(t *testing.T) {
	t.Parallel()

	q := audio.NewSampleQueue()
	q.Append([]int16{1})
	q.Append([]int16{2})
	q.Append(nil)

	select {
	case <-q.Notify():
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-q.Notify():
		t.Fatal("expected notifications to coalesce")
	default:
	}
}
