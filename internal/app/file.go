package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/audio"
)

// RunFile feeds the WAV file at path through the pipeline, one frame at a
// time. The file must be mono 16-bit PCM at the pipeline's sample rate. A
// trailing partial frame is dropped.
func (a *App) RunFile(ctx context.Context, path string) error {
	ctx, span := observe.StartRun(ctx, "file", attribute.String("file.path", path))
	defer span.End()
	log := observe.Logger(ctx)

	// Every run starts scanning for the wake word.
	a.pipe.Reset()

	f, err := a.fs.Open(path)
	if err != nil {
		return observe.Fail(span, fmt.Errorf("app: open %q: %w", path, err))
	}
	defer f.Close()

	src, err := audio.OpenFileSource(f, a.pipe.SampleRate(), a.pipe.FrameLength())
	if err != nil {
		return observe.Fail(span, fmt.Errorf("app: %q: %w", path, err))
	}

	start := time.Now()
	n, err := audio.ForEachFrame(ctx, src, a.pipe.Process)
	span.SetAttributes(attribute.Int("pipeline.frames", n))
	log.Info("file processed",
		"path", path,
		"frames", n,
		"audio_seconds", float64(n*a.pipe.FrameLength())/float64(a.pipe.SampleRate()),
		"elapsed", time.Since(start),
	)
	if err != nil {
		return observe.Fail(span, fmt.Errorf("app: process %q: %w", path, err))
	}
	return nil
}
