// Package detect contains the per-modality synthesis detection engines.
// Engines are stateless and deterministic: identical bytes always produce
// identical evidence, so they are safe to invoke concurrently and their
// output is reproducible in tests.
package detect

import (
	"context"
	"errors"

	"github.com/drishti-ai/drishti/pkg/models"
)

// ErrUnreadablePayload means the engine could not extract enough signal
// from the bytes to score them. The pipeline degrades by omitting the
// sub-score; it is not a request failure on its own.
var ErrUnreadablePayload = errors.New("payload unreadable by detector")

// ModelAttribution links evidence to a known generative model.
type ModelAttribution struct {
	Model      string
	Confidence float64
}

// Evidence is a detector's full output: a calibrated probability that
// the content is synthetic plus modality-specific supporting detail.
type Evidence struct {
	Score       float64
	Signals     []string
	Attribution *ModelAttribution
	// HeatmapZones is populated by the image engine only.
	HeatmapZones []models.HeatmapZone
	// Timeline is populated by the video engine only.
	Timeline []models.TimelinePoint
}

// Detector scores one modality. Each modality has exactly one
// authoritative detector.
type Detector interface {
	Modality() string
	Detect(ctx context.Context, payload []byte) (*Evidence, error)
}

// Registry holds the authoritative detector per modality.
type Registry struct {
	detectors map[string]Detector
}

func NewRegistry() *Registry {
	r := &Registry{detectors: make(map[string]Detector)}
	for _, d := range []Detector{
		NewImageDetector(),
		NewVideoDetector(),
		NewAudioDetector(),
		NewTextDetector(),
	} {
		r.detectors[d.Modality()] = d
	}
	return r
}

// Register replaces the detector for d's modality. The built-in engines
// are stateless, so swapping one out is safe at any point before
// requests are submitted.
func (r *Registry) Register(d Detector) {
	r.detectors[d.Modality()] = d
}

// Get returns the detector for a modality, or nil.
func (r *Registry) Get(modality string) Detector {
	return r.detectors[modality]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
