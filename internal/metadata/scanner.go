// Package metadata inspects container metadata and provenance claims.
// It never decodes media content; everything here is structural.
package metadata

import (
	"bytes"
	"context"

	"github.com/drishti-ai/drishti/internal/ingest"
	"github.com/drishti-ai/drishti/pkg/models"
)

// Finding codes, shared with the fusion indicator catalog.
const (
	FindingEXIFAbsent     = "exif_absent"
	FindingEXIFPresent    = "exif_present"
	FindingSoftwareTag    = "software_tag"
	FindingC2PAClaim      = "c2pa_claim"
	FindingUnknownFormat  = "unknown_container"
	FindingTruncated      = "truncated_container"
)

// Report is the scanner output. A high score correlates with metadata
// absence or inconsistency: missing EXIF on a camera-format file is
// evidence of synthesis, not proof.
type Report struct {
	Score    float64
	Findings []string
}

// Scanner checks structural metadata independently of the content-byte
// detectors. Stateless, deterministic.
type Scanner struct{}

func NewScanner() *Scanner { return &Scanner{} }

func (s *Scanner) Scan(_ context.Context, payload []byte) (*Report, error) {
	r := &Report{}
	if len(payload) == 0 {
		r.Score = 1
		r.Findings = append(r.Findings, FindingTruncated)
		return r, nil
	}

	modality := ingest.Sniff(payload)
	switch modality {
	case models.ModalityImage:
		s.scanImage(payload, r)
	case models.ModalityVideo, models.ModalityAudio:
		s.scanContainer(payload, r)
	case models.ModalityText:
		// Plain text has no container; neutral.
		r.Score = 0.3
	default:
		r.Score = 0.6
		r.Findings = append(r.Findings, FindingUnknownFormat)
	}

	// A provenance claim is the strongest authenticity signal we accept
	// structurally; it overrides the absence heuristics.
	if hasC2PAClaim(payload) {
		r.Findings = append(r.Findings, FindingC2PAClaim)
		if r.Score > 0.15 {
			r.Score = 0.15
		}
	}

	return r, nil
}

func (s *Scanner) scanImage(payload []byte, r *Report) {
	isJPEG := bytes.HasPrefix(payload, []byte{0xFF, 0xD8, 0xFF})
	hasEXIF := bytes.Contains(head(payload, 64<<10), []byte("Exif\x00\x00"))

	switch {
	case isJPEG && !hasEXIF:
		// Camera formats without camera metadata.
		r.Score = 0.85
		r.Findings = append(r.Findings, FindingEXIFAbsent)
	case hasEXIF:
		r.Score = 0.2
		r.Findings = append(r.Findings, FindingEXIFPresent)
	default:
		// PNG/WEBP routinely lack EXIF; weaker signal.
		r.Score = 0.55
		r.Findings = append(r.Findings, FindingEXIFAbsent)
	}

	if hasSoftwareTag(payload) {
		r.Findings = append(r.Findings, FindingSoftwareTag)
		if r.Score < 0.7 {
			r.Score = 0.7
		}
	}
}

func (s *Scanner) scanContainer(payload []byte, r *Report) {
	// AV containers: look for an encoder tag; its absence on a
	// well-formed container is mildly suspicious, its presence with an
	// editing tool name more so.
	if hasSoftwareTag(payload) {
		r.Score = 0.65
		r.Findings = append(r.Findings, FindingSoftwareTag)
		return
	}
	r.Score = 0.45
	r.Findings = append(r.Findings, FindingEXIFAbsent)
}

var softwareTags = [][]byte{
	[]byte("Adobe"),
	[]byte("GIMP"),
	[]byte("Lavf"), // ffmpeg re-encode
	[]byte("HandBrake"),
	[]byte("parameters"), // SD webui PNG chunk
}

func hasSoftwareTag(payload []byte) bool {
	window := head(payload, 64<<10)
	for _, tag := range softwareTags {
		if bytes.Contains(window, tag) {
			return true
		}
	}
	return false
}

func hasC2PAClaim(payload []byte) bool {
	window := head(payload, 128<<10)
	return bytes.Contains(window, []byte("c2pa")) || bytes.Contains(window, []byte("jumb"))
}

func head(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
