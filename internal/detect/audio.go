package detect

import (
	"context"

	"github.com/drishti-ai/drishti/pkg/models"
)

// AudioDetector scores audio byte streams. Natural recordings carry
// room-noise variance across the stream; synthesized voices compress
// into an unusually flat distribution. Evidence is a single score with
// no spatial detail.
type AudioDetector struct{}

func NewAudioDetector() *AudioDetector { return &AudioDetector{} }

func (d *AudioDetector) Modality() string { return models.ModalityAudio }

func (d *AudioDetector) Detect(_ context.Context, payload []byte) (*Evidence, error) {
	if len(payload) < 128 {
		return nil, ErrUnreadablePayload
	}

	ents := chunkEntropies(payload, 16)
	m := mean(ents)
	sd := stddev(ents)

	ev := &Evidence{}
	flatness := 1 - minf(sd/1.0, 1)
	ev.Score = clamp01(0.1 + 0.6*flatness*(m/8))

	if flatness > 0.75 && m > 5.5 {
		ev.Signals = append(ev.Signals, SignalSpectralFlat)
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
