// Package ingest validates and normalizes incoming media submissions.
package ingest

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/drishti-ai/drishti/pkg/models"
)

var (
	// ErrInvalidPayload covers empty, malformed or unclassifiable input.
	// Surfaced to the caller immediately, never retried, and no request
	// record is created.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrPayloadTooLarge means the payload exceeds the size ceiling for
	// its modality.
	ErrPayloadTooLarge = errors.New("payload too large")
)

var validModalities = map[string]bool{
	models.ModalityImage:    true,
	models.ModalityVideo:    true,
	models.ModalityAudio:    true,
	models.ModalityText:     true,
	models.ModalityWhatsApp: true,
}

// Normalizer resolves the modality of a submission and enforces payload
// limits. Stateless and safe for concurrent use.
type Normalizer struct {
	maxSizes map[string]int64
}

func NewNormalizer(maxSizes map[string]int64) *Normalizer {
	return &Normalizer{maxSizes: maxSizes}
}

// Resolve validates the payload against the declared modality, sniffing
// the content when no modality is declared. The whatsapp modality
// requires the caption field to be present (it may be empty).
func (n *Normalizer) Resolve(payload []byte, declared string, caption *string) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	modality := declared
	if modality == "" {
		modality = Sniff(payload)
		if modality == "" {
			return "", fmt.Errorf("%w: content type could not be determined", ErrInvalidPayload)
		}
	} else if !validModalities[modality] {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, declared)
	}

	if modality == models.ModalityWhatsApp {
		if caption == nil {
			return "", fmt.Errorf("%w: whatsapp submissions require a caption field", ErrInvalidPayload)
		}
		if Sniff(payload) != models.ModalityImage {
			return "", fmt.Errorf("%w: whatsapp submissions must carry an image payload", ErrInvalidPayload)
		}
	}

	// A declared modality must still be parseable as content; a text
	// declaration over binary junk is rejected rather than scored.
	if modality == models.ModalityText && !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: text payload is not valid UTF-8", ErrInvalidPayload)
	}

	if max, ok := n.maxSizes[modality]; ok && int64(len(payload)) > max {
		return "", fmt.Errorf("%w: %d bytes exceeds the %s ceiling of %d",
			ErrPayloadTooLarge, len(payload), modality, max)
	}

	return modality, nil
}

// Sniff classifies a payload by magic bytes, returning "" when the
// container is unrecognized.
func Sniff(payload []byte) string {
	switch {
	case hasPrefix(payload, 0xFF, 0xD8, 0xFF):
		return models.ModalityImage // JPEG
	case hasPrefix(payload, 0x89, 'P', 'N', 'G'):
		return models.ModalityImage
	case len(payload) >= 12 && string(payload[:4]) == "RIFF" && string(payload[8:12]) == "WEBP":
		return models.ModalityImage
	case hasPrefix(payload, 'G', 'I', 'F', '8'):
		return models.ModalityImage
	case len(payload) >= 12 && string(payload[4:8]) == "ftyp":
		return models.ModalityVideo // MP4/MOV family
	case hasPrefix(payload, 0x1A, 0x45, 0xDF, 0xA3):
		return models.ModalityVideo // Matroska/WebM
	case len(payload) >= 12 && string(payload[:4]) == "RIFF" && string(payload[8:12]) == "AVI ":
		return models.ModalityVideo
	case hasPrefix(payload, 'I', 'D', '3'), hasPrefix(payload, 0xFF, 0xFB), hasPrefix(payload, 0xFF, 0xF3):
		return models.ModalityAudio // MP3
	case len(payload) >= 12 && string(payload[:4]) == "RIFF" && string(payload[8:12]) == "WAVE":
		return models.ModalityAudio
	case hasPrefix(payload, 'f', 'L', 'a', 'C'), hasPrefix(payload, 'O', 'g', 'g', 'S'):
		return models.ModalityAudio
	case utf8.Valid(payload) && looksTextual(payload):
		return models.ModalityText
	}
	return ""
}

func hasPrefix(payload []byte, prefix ...byte) bool {
	if len(payload) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if payload[i] != b {
			return false
		}
	}
	return true
}

// looksTextual rejects UTF-8-coincidental binary by requiring the sample
// to be overwhelmingly printable.
func looksTextual(payload []byte) bool {
	sample := payload
	if len(sample) > 512 {
		sample = sample[:512]
	}
	printable := 0
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b != 0x7F) {
			printable++
		}
	}
	return printable*100 >= len(sample)*95
}
