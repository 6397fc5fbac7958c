// Package models contains shared data models used across the DRISHTI codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Modality identifies which detection engines apply to a submission.
// The whatsapp modality is a paired (image, caption) unit.
const (
	ModalityImage    = "image"
	ModalityVideo    = "video"
	ModalityAudio    = "audio"
	ModalityText     = "text"
	ModalityWhatsApp = "whatsapp"
)

// Request lifecycle. Transitions are monotonic: pending -> running ->
// complete | failed | cancelled. Terminal states never regress.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Verdict labels. The band an overall confidence falls into is crossed
// with modality to pick the label (see internal/fusion).
const (
	VerdictAuthentic        = "Authentic"
	VerdictPossiblySynth    = "Possibly Synthetic"
	VerdictLikelyAIGen      = "Likely AI-Generated"
	VerdictManipulated      = "Manipulated"
	VerdictDeepfake         = "Deepfake"
	VerdictAIWritten        = "AI-Written"
)

// Cross-modal consistency risk levels, ordinal: LOW < MEDIUM < HIGH < CRITICAL.
const (
	CMCERiskLow      = "LOW"
	CMCERiskMedium   = "MEDIUM"
	CMCERiskHigh     = "HIGH"
	CMCERiskCritical = "CRITICAL"
)

// Indicator severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnalysisRequest tracks one content submission through the pipeline.
// The API returns a request_id on POST /v1/analyze; the client polls
// GET /v1/analyze/{request_id} until status is terminal. Payload bytes
// are staged only for the processing window and deleted on completion.
//
// Language records the caller's preferred indicator language. It does
// not narrow the result: indicators are emitted for every supported
// language so a client can switch display language without re-running
// the analysis.
type AnalysisRequest struct {
	ID          uuid.UUID       `json:"request_id"`
	Modality    string          `json:"modality"`
	FileName    string          `json:"file_name,omitempty"`
	Language    string          `json:"language"`
	Caption     *string         `json:"caption,omitempty"`
	Status      string          `json:"status"`
	Result      *AnalysisResult `json:"result,omitempty"`
	ErrorCode   string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Terminal reports whether the request has reached a final status.
func (r *AnalysisRequest) Terminal() bool {
	switch r.Status {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// AnalysisResult is the full verdict payload for a completed request.
// Sub-scores are present only for signals that actually ran; an omitted
// key means "no signal", never "authentic".
type AnalysisResult struct {
	OverallConfidence float64                `json:"overall_confidence"`
	Verdict           string                 `json:"verdict"`
	SubScores         map[string]float64     `json:"sub_scores"`
	GANSource         *GANSource             `json:"gan_source,omitempty"`
	CMCE              CMCEAssessment         `json:"cmce"`
	ViralRisk         ViralRisk              `json:"viral_risk"`
	Indicators        map[string][]Indicator `json:"indicators"`
	HeatmapZones      []HeatmapZone          `json:"heatmap_zones,omitempty"`
	Timeline          []TimelinePoint        `json:"timeline,omitempty"`
	CaptionClaim      *string                `json:"caption_claim,omitempty"`
	Degraded          []string               `json:"degraded,omitempty"`
	ProcessingMS      int64                  `json:"processing_ms"`
}

// GANSource attributes the content to a specific generative model. Only
// populated when attribution confidence crosses the configured threshold.
type GANSource struct {
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
}

// CMCEAssessment is the cross-modal consistency engine output.
type CMCEAssessment struct {
	Risk   string `json:"risk"`
	Detail string `json:"detail"`
}

// ViralRisk estimates spread potential on a 0-100 scale.
type ViralRisk struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// Indicator is one localized, severity-ranked finding.
type Indicator struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// HeatmapZone marks a suspect region of an image or video frame.
// Coordinates are fractions of the frame in [0,1].
type HeatmapZone struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
	Label  string  `json:"label"`
}

// TimelinePoint is a per-segment synthesis score for video content.
type TimelinePoint struct {
	OffsetMS int64   `json:"offset_ms"`
	Score    float64 `json:"score"`
}
