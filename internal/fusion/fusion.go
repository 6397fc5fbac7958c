// Package fusion combines detector evidence, metadata findings and the
// CMCE assessment into the final verdict payload.
package fusion

import (
	"math"

	"github.com/drishti-ai/drishti/internal/config"
	"github.com/drishti-ai/drishti/internal/consistency"
	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/pkg/models"
)

// Input is the joined output of the per-request detector tasks.
type Input struct {
	Modality         string
	SubScores        map[string]float64
	Evidence         map[string]*detect.Evidence
	MetadataFindings []string
	CMCE             models.CMCEAssessment
	Caption          *string
	Degraded         []string
}

// Fuser aggregates per the configured policy. Stateless apart from the
// policy, which is read-only after startup.
type Fuser struct {
	policy *config.Policy
}

func New(policy *config.Policy) *Fuser {
	return &Fuser{policy: policy}
}

// Fuse computes the overall confidence as a weighted combination of the
// populated sub-scores, with weights of absent signals redistributed
// proportionally among the present ones. The CMCE risk acts as a
// floor-raising modifier only: it can push confidence up, never down.
func (f *Fuser) Fuse(in Input) *models.AnalysisResult {
	confidence := f.weightedConfidence(in.Modality, in.SubScores)

	if floor, ok := f.policy.CMCEFloors[in.CMCE.Risk]; ok && confidence < floor {
		confidence = floor
	}
	confidence = clamp01(confidence)

	result := &models.AnalysisResult{
		OverallConfidence: confidence,
		Verdict:           f.verdict(confidence, in.Modality),
		SubScores:         in.SubScores,
		CMCE:              in.CMCE,
		ViralRisk:         f.viralRisk(confidence, in.CMCE.Risk),
		GANSource:         f.attribution(in.Evidence),
		Indicators:        buildIndicators(in),
		CaptionClaim:      in.Caption,
		Degraded:          in.Degraded,
	}

	for _, ev := range in.Evidence {
		if len(ev.HeatmapZones) > 0 {
			result.HeatmapZones = ev.HeatmapZones
		}
		if len(ev.Timeline) > 0 {
			result.Timeline = ev.Timeline
		}
	}

	return result
}

func (f *Fuser) weightedConfidence(modality string, sub map[string]float64) float64 {
	weights := f.policy.Weights[modality]
	var weighted, present float64
	for signal, w := range weights {
		score, ok := sub[signal]
		if !ok {
			continue // omitted sub-score is "no signal", not authentic
		}
		weighted += w * score
		present += w
	}
	if present == 0 {
		return 0
	}
	return weighted / present
}

func (f *Fuser) verdict(confidence float64, modality string) string {
	bands := f.policy.Bands
	switch {
	case confidence < bands.Authentic:
		return models.VerdictAuthentic
	case confidence < bands.PossiblySynthetic:
		return models.VerdictPossiblySynth
	case confidence <= bands.Likely:
		if modality == models.ModalityWhatsApp {
			return models.VerdictManipulated
		}
		return models.VerdictLikelyAIGen
	default:
		switch modality {
		case models.ModalityText:
			return models.VerdictAIWritten
		case models.ModalityWhatsApp:
			return models.VerdictManipulated
		default:
			return models.VerdictDeepfake
		}
	}
}

// viralRisk combines the overall confidence and the CMCE risk level as
// independent contributions, so a low-confidence request with a CRITICAL
// consistency finding still registers elevated spread risk.
func (f *Fuser) viralRisk(confidence float64, risk string) models.ViralRisk {
	riskFrac := float64(consistency.RiskRank(risk)) / 3
	score := int(math.Round(100 * (f.policy.ViralConfidenceWeight*confidence +
		f.policy.ViralCMCEWeight*riskFrac)))
	if score > 100 {
		score = 100
	}

	var label string
	switch {
	case score < 25:
		label = "Low Spread Potential"
	case score < 50:
		label = "Moderate Spread Potential"
	case score < 75:
		label = "High Spread Potential"
	default:
		label = "Critical Spread Potential"
	}
	return models.ViralRisk{Score: score, Label: label}
}

// attribution surfaces the strongest model attribution across detectors,
// and only when it crosses the policy threshold. Below the threshold the
// field stays entirely absent rather than becoming a low-confidence guess.
func (f *Fuser) attribution(evidence map[string]*detect.Evidence) *models.GANSource {
	var best *detect.ModelAttribution
	for _, ev := range evidence {
		if ev.Attribution == nil {
			continue
		}
		if best == nil || ev.Attribution.Confidence > best.Confidence {
			best = ev.Attribution
		}
	}
	if best == nil || best.Confidence < f.policy.AttributionThreshold {
		return nil
	}
	return &models.GANSource{Model: best.Model, Confidence: best.Confidence}
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
