package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/catpoint/internal/logger"
)

// Label is one result of a multi-label image detection.
type Label struct {
	// Name is the detected object, e.g. "Cat".
	Name string `json:"name"`
	// Confidence is in percent, 0-100.
	Confidence float64 `json:"confidence"`
}

// LabelDetector returns the labels found in an image.
type LabelDetector interface {
	DetectLabels(ctx context.Context, image []byte) ([]Label, error)
}

// Labels matches detector output against a subject name and confidence threshold.
type Labels struct {
	detector      LabelDetector
	subject       string
	minConfidence float64
}

// NewLabels creates a Labels classifier.
func NewLabels(detector LabelDetector, subject string, minConfidence float64) *Labels {
	return &Labels{
		detector:      detector,
		subject:       subject,
		minConfidence: minConfidence,
	}
}

// Classify reports whether any label at or above the threshold names the subject,
// compared case-insensitively.
func (l *Labels) Classify(ctx context.Context, image []byte) (bool, error) {
	labels, err := l.detector.DetectLabels(ctx, image)
	if err != nil {
		return false, fmt.Errorf("detect labels: %w", err)
	}

	logger.DebugKV(ctx, "Labels detected", "labels", formatLabels(labels))

	for _, label := range labels {
		if label.Confidence < l.minConfidence {
			continue
		}

		if strings.EqualFold(label.Name, l.subject) {
			return true, nil
		}
	}

	return false, nil
}

func formatLabels(labels []Label) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s(%.1f%%)", label.Name, label.Confidence))
	}

	return strings.Join(parts, ", ")
}
