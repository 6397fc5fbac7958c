package detect

import (
	"context"

	"github.com/drishti-ai/drishti/pkg/models"
)

const (
	videoSegments  = 8
	segmentMS      = 2000
)

// VideoDetector samples the stream at fixed intervals and scores each
// segment the way the image engine scores a frame. The per-segment scores
// become the timeline; the aggregate blends the worst segment with the
// mean so a short manipulated span still registers.
type VideoDetector struct{}

func NewVideoDetector() *VideoDetector { return &VideoDetector{} }

func (d *VideoDetector) Modality() string { return models.ModalityVideo }

func (d *VideoDetector) Detect(_ context.Context, payload []byte) (*Evidence, error) {
	if len(payload) < 256 {
		return nil, ErrUnreadablePayload
	}

	ents := chunkEntropies(payload, videoSegments)
	m := mean(ents)
	sd := stddev(ents)

	ev := &Evidence{
		Timeline: make([]models.TimelinePoint, 0, videoSegments),
	}

	scores := make([]float64, len(ents))
	for i, e := range ents {
		// Per-segment score mirrors the image uniformity heuristic.
		scores[i] = clamp01(0.15 + 0.55*(1-minf(absf(e-m)/1.2, 1))*(e/8))
		ev.Timeline = append(ev.Timeline, models.TimelinePoint{
			OffsetMS: int64(i) * segmentMS,
			Score:    round2(scores[i]),
		})
	}

	ev.Score = clamp01(0.6*maxOf(scores) + 0.4*mean(scores))

	if sd > 0.9 {
		// Abrupt entropy swings between adjacent segments point at
		// spliced or re-encoded spans.
		ev.Signals = append(ev.Signals, SignalTemporalJitter)
		ev.Score = clamp01(ev.Score + 0.1)
	}
	if m > 6.5 && sd < 0.4 {
		ev.Signals = append(ev.Signals, SignalGANNoise)
	}
	if attr := scanGeneratorMarkers(payload); attr != nil {
		ev.Signals = append(ev.Signals, SignalGeneratorTag)
		ev.Attribution = attr
		if ev.Score < 0.85 {
			ev.Score = 0.85
		}
	}

	return ev, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
