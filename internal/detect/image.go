package detect

import (
	"bytes"
	"context"

	"github.com/drishti-ai/drishti/pkg/models"
)

// Signal codes shared with the fusion indicator catalog.
const (
	SignalGANNoise       = "gan_noise_fingerprint"
	SignalSmoothing      = "synthetic_smoothing"
	SignalGeneratorTag   = "generator_tag"
	SignalTemporalJitter = "temporal_inconsistency"
	SignalSpectralFlat   = "spectral_flatness"
	SignalLowBurstiness  = "low_burstiness"
	SignalHighRepetition = "high_repetition"
	SignalStockPhrasing  = "ai_stock_phrasing"
)

const imageGridSize = 4

// generatorMarkers are byte sequences generative tools are known to leave
// in container text chunks or trailing segments.
var generatorMarkers = []struct {
	marker     string
	model      string
	confidence float64
}{
	{"stable diffusion", "Stable Diffusion XL", 0.92},
	{"sdxl", "Stable Diffusion XL", 0.88},
	{"midjourney", "Midjourney v6", 0.9},
	{"dall-e", "DALL-E 3", 0.9},
	{"stylegan", "StyleGAN3", 0.87},
}

// ImageDetector scores still images by noise-floor statistics. Camera
// sensor noise produces uneven per-region entropy; diffusion and GAN
// output tends toward a uniform noise floor.
type ImageDetector struct{}

func NewImageDetector() *ImageDetector { return &ImageDetector{} }

func (d *ImageDetector) Modality() string { return models.ModalityImage }

func (d *ImageDetector) Detect(_ context.Context, payload []byte) (*Evidence, error) {
	if len(payload) < 64 {
		return nil, ErrUnreadablePayload
	}

	ents := chunkEntropies(payload, imageGridSize*imageGridSize)
	m := mean(ents)
	sd := stddev(ents)

	ev := &Evidence{}

	// Uniformity of the noise floor is the primary synthesis signal.
	uniformity := 1 - minf(sd/1.2, 1)
	ev.Score = clamp01(0.15 + 0.55*uniformity*(m/8))

	if m > 6.5 && sd < 0.4 {
		ev.Signals = append(ev.Signals, SignalGANNoise)
	}

	var smoothed int
	for _, e := range ents {
		if e < 4 {
			smoothed++
		}
	}
	if smoothed*10 >= len(ents)*3 {
		ev.Signals = append(ev.Signals, SignalSmoothing)
		ev.Score = clamp01(ev.Score + 0.12)
	}

	if attr := scanGeneratorMarkers(payload); attr != nil {
		ev.Signals = append(ev.Signals, SignalGeneratorTag)
		ev.Attribution = attr
		if ev.Score < 0.85 {
			ev.Score = 0.85
		}
	} else if ev.Score >= 0.6 {
		// Fingerprint without an explicit tag: weak attribution only.
		ev.Attribution = &ModelAttribution{Model: "StyleGAN3", Confidence: 0.45}
	}

	ev.HeatmapZones = heatmapZones(ents, m, sd)
	return ev, nil
}

// heatmapZones maps entropy outlier chunks onto a 4x4 grid of fractional
// frame coordinates.
func heatmapZones(ents []float64, m, sd float64) []models.HeatmapZone {
	if sd == 0 {
		return nil
	}
	var zones []models.HeatmapZone
	cell := 1.0 / imageGridSize
	for i, e := range ents {
		if len(zones) == 5 {
			break
		}
		if absf(e-m) <= 1.5*sd {
			continue
		}
		label := "noise anomaly"
		if e < m {
			label = "smoothed region"
		}
		zones = append(zones, models.HeatmapZone{
			X:      float64(i%imageGridSize) * cell,
			Y:      float64(i/imageGridSize) * cell,
			Width:  cell,
			Height: cell,
			Label:  label,
		})
	}
	return zones
}

// scanGeneratorMarkers looks for tool signatures in the leading and
// trailing container segments, where text chunks live.
func scanGeneratorMarkers(payload []byte) *ModelAttribution {
	window := payload
	if len(window) > 64<<10 {
		head := window[:48<<10]
		tail := window[len(window)-16<<10:]
		window = append(append([]byte(nil), head...), tail...)
	}
	lower := bytes.ToLower(window)
	for _, gm := range generatorMarkers {
		if bytes.Contains(lower, []byte(gm.marker)) {
			return &ModelAttribution{Model: gm.model, Confidence: gm.confidence}
		}
	}
	return nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
