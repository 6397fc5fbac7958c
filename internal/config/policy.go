package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the calibration constants for fusion and detection: weight
// tables per modality, CMCE confidence floors, verdict bands and the GAN
// attribution threshold. The compiled-in defaults are uncalibrated
// placeholders; production deployments override them via a YAML file.
type Policy struct {
	// Weights maps modality -> signal -> weight. Weights of absent
	// signals are redistributed proportionally at fusion time.
	Weights map[string]map[string]float64 `yaml:"weights"`

	// CMCEFloors maps a CMCE risk level to a minimum overall confidence.
	// Floors only ever raise confidence.
	CMCEFloors map[string]float64 `yaml:"cmce_floors"`

	// Verdict band upper bounds. Confidence below Authentic is Authentic,
	// below PossiblySynthetic is Possibly Synthetic, at or below Likely is
	// the modality-dependent "likely" label, above it the strongest label.
	Bands VerdictBands `yaml:"bands"`

	// AttributionThreshold is the minimum attribution confidence for the
	// gan_source field to be populated at all.
	AttributionThreshold float64 `yaml:"attribution_threshold"`

	// ViralConfidenceWeight and ViralCMCEWeight combine into the viral
	// risk score; both signals contribute independently.
	ViralConfidenceWeight float64 `yaml:"viral_confidence_weight"`
	ViralCMCEWeight       float64 `yaml:"viral_cmce_weight"`
}

type VerdictBands struct {
	Authentic          float64 `yaml:"authentic"`
	PossiblySynthetic  float64 `yaml:"possibly_synthetic"`
	Likely             float64 `yaml:"likely"`
}

// DefaultPolicy returns the compiled-in detection policy.
func DefaultPolicy() *Policy {
	return &Policy{
		Weights: map[string]map[string]float64{
			"image":    {"image": 0.7, "metadata": 0.3},
			"video":    {"video": 0.5, "audio": 0.3, "metadata": 0.2},
			"audio":    {"audio": 0.7, "metadata": 0.3},
			"text":     {"text": 0.8, "metadata": 0.2},
			"whatsapp": {"image": 0.55, "text": 0.25, "metadata": 0.2},
		},
		CMCEFloors: map[string]float64{
			"CRITICAL": 0.75,
			"HIGH":     0.55,
		},
		Bands: VerdictBands{
			Authentic:         0.40,
			PossiblySynthetic: 0.65,
			Likely:            0.85,
		},
		AttributionThreshold:  0.6,
		ViralConfidenceWeight: 0.7,
		ViralCMCEWeight:       0.3,
	}
}

// LoadPolicy returns the default policy, overlaid with the YAML file at
// path when path is non-empty.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

func (p *Policy) validate() error {
	for modality, weights := range p.Weights {
		var sum float64
		for signal, w := range weights {
			if w < 0 {
				return fmt.Errorf("weight %s/%s is negative", modality, signal)
			}
			sum += w
		}
		if sum <= 0 {
			return fmt.Errorf("weights for %s sum to zero", modality)
		}
	}
	if p.Bands.Authentic >= p.Bands.PossiblySynthetic || p.Bands.PossiblySynthetic >= p.Bands.Likely {
		return fmt.Errorf("verdict bands must be strictly increasing")
	}
	for level, floor := range p.CMCEFloors {
		if floor < 0 || floor > 1 {
			return fmt.Errorf("cmce floor for %s out of [0,1]: %v", level, floor)
		}
	}
	return nil
}
