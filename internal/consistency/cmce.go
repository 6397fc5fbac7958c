// Package consistency implements the cross-modal consistency engine
// (CMCE). It compares the per-modality signals of a single request
// against each other and against any accompanying textual claim. No
// state is kept across requests and there is no randomness: identical
// inputs always produce the identical assessment.
package consistency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/pkg/models"
)

// riskRank orders the ordinal risk levels.
var riskRank = map[string]int{
	models.CMCERiskLow:      0,
	models.CMCERiskMedium:   1,
	models.CMCERiskHigh:     2,
	models.CMCERiskCritical: 3,
}

// RiskRank returns the ordinal position of a CMCE risk level.
func RiskRank(risk string) int { return riskRank[risk] }

// assertionTerms mark a caption claiming the content is genuine footage
// of a real event.
var assertionTerms = []string{
	"real", "genuine", "authentic", "unedited", "original",
	"live", "actual", "proof", "caught on camera", "breaking",
	"happened", "footage",
}

// synthesisSignals are detector signals that directly contradict an
// authenticity claim.
var synthesisSignals = map[string]bool{
	detect.SignalGANNoise:     true,
	detect.SignalGeneratorTag: true,
	detect.SignalSmoothing:    true,
}

// Input carries everything the engine consumes for one request.
type Input struct {
	SubScores     map[string]float64
	MetadataScore float64
	Caption       *string
	// ContentSignals is the union of detector signal codes.
	ContentSignals []string
}

// Engine computes consistency risk. Stateless.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Check assesses cross-modal agreement. Risk only escalates: divergence
// between correlated signals raises it step by step, and an explicit
// claim contradiction forces CRITICAL regardless of the scores.
func (e *Engine) Check(in Input) models.CMCEAssessment {
	out := models.CMCEAssessment{
		Risk:   models.CMCERiskLow,
		Detail: "All signals agree.",
	}

	if name1, name2, gap := widestGap(in.SubScores); gap > 0 {
		switch {
		case gap > 0.5:
			escalate(&out, models.CMCERiskHigh,
				fmt.Sprintf("Strong divergence between %s and %s signals (%.2f apart).", name1, name2, gap))
		case gap > 0.3:
			escalate(&out, models.CMCERiskMedium,
				fmt.Sprintf("Moderate divergence between %s and %s signals (%.2f apart).", name1, name2, gap))
		}
	}

	// Metadata disagreeing hard with content is its own inconsistency.
	if content := maxScore(in.SubScores); content >= 0 {
		if gap := in.MetadataScore - content; gap > 0.5 {
			escalate(&out, models.CMCERiskMedium,
				"Container metadata contradicts the content-level analysis.")
		}
	}

	if in.Caption != nil && claimsAuthenticity(*in.Caption) && contradicted(in) {
		escalate(&out, models.CMCERiskCritical,
			"Caption asserts authentic footage while the visual analysis indicates synthetic content.")
	}

	return out
}

func escalate(out *models.CMCEAssessment, risk, detail string) {
	if riskRank[risk] > riskRank[out.Risk] {
		out.Risk = risk
		out.Detail = detail
	}
}

// widestGap returns the pair of sub-score names with the largest score
// distance. Comparison order is made deterministic by sorting keys.
func widestGap(sub map[string]float64) (string, string, float64) {
	if len(sub) < 2 {
		return "", "", 0
	}
	names := make([]string, 0, len(sub))
	for name := range sub {
		names = append(names, name)
	}
	sort.Strings(names)

	var a, b string
	var gap float64
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			d := sub[names[i]] - sub[names[j]]
			if d < 0 {
				d = -d
			}
			if d > gap {
				gap, a, b = d, names[i], names[j]
			}
		}
	}
	return a, b, gap
}

func maxScore(sub map[string]float64) float64 {
	max := -1.0
	for _, v := range sub {
		if v > max {
			max = v
		}
	}
	return max
}

func claimsAuthenticity(caption string) bool {
	lower := strings.ToLower(caption)
	for _, term := range assertionTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// contradicted reports whether the detected content attributes directly
// contradict an authenticity assertion.
func contradicted(in Input) bool {
	for _, sig := range in.ContentSignals {
		if synthesisSignals[sig] {
			return true
		}
	}
	for name, score := range in.SubScores {
		if name != "text" && score > 0.6 {
			return true
		}
	}
	return false
}
