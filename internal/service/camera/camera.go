package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/catpoint/internal/logger"
)

// Source produces camera frames.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Processor consumes camera frames.
type Processor interface {
	ProcessImage(ctx context.Context, image []byte) error
}

// errEmptyFrame is returned when the source produced no data.
var errEmptyFrame = errors.New("empty frame")

// FileSource reads the latest snapshot written by an external capture tool.
type FileSource struct {
	// Path is the snapshot file location.
	Path string
}

// Capture reads the snapshot file.
func (s *FileSource) Capture(context.Context) ([]byte, error) {
	frame, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: %s", errEmptyFrame, s.Path)
	}

	return frame, nil
}

// Loop feeds frames from a Source into a Processor on a fixed interval.
type Loop struct {
	source    Source
	processor Processor
	interval  time.Duration
}

// NewLoop creates a capture loop.
func NewLoop(source Source, processor Processor, interval time.Duration) *Loop {
	return &Loop{
		source:    source,
		processor: processor,
		interval:  interval,
	}
}

// Run captures one frame immediately and then one per interval until ctx is done.
// Capture and processing failures are logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "camera")

	logger.InfoKV(ctx, "Camera loop started", "interval", l.interval.String())

	l.tick(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Camera loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	frame, err := l.source.Capture(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Capture failed", "error", err)
		return
	}

	if err = l.processor.ProcessImage(ctx, frame); err != nil && ctx.Err() == nil {
		logger.ErrorKV(ctx, "Process image failed", "error", err)
	}
}
