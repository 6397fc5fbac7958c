package fusion

import (
	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/internal/metadata"
	"github.com/drishti-ai/drishti/pkg/models"
)

// Languages indicators are rendered in.
var Languages = []string{"en", "hi", "mr"}

// indicatorRule maps one underlying evidence code to localized
// statements. Severity lives on the rule, so the ranking is identical
// across languages even though the wording differs.
type indicatorRule struct {
	severity string
	text     map[string]string
}

// ruleOrder fixes the emission order so indicator sequences are stable
// across runs.
var ruleOrder = []string{
	detect.SignalGeneratorTag,
	detect.SignalGANNoise,
	detect.SignalSmoothing,
	detect.SignalTemporalJitter,
	detect.SignalSpectralFlat,
	detect.SignalStockPhrasing,
	detect.SignalLowBurstiness,
	detect.SignalHighRepetition,
	metadata.FindingEXIFAbsent,
	metadata.FindingSoftwareTag,
	metadata.FindingEXIFPresent,
	metadata.FindingC2PAClaim,
	ruleCMCECritical,
}

const ruleCMCECritical = "cmce_contradiction"

var indicatorCatalog = map[string]indicatorRule{
	detect.SignalGeneratorTag: {
		severity: models.SeverityHigh,
		text: map[string]string{
			"en": "Generator signature embedded in the file",
			"hi": "फ़ाइल में जनरेटर हस्ताक्षर मौजूद है",
			"mr": "फाइलमध्ये जनरेटर स्वाक्षरी आढळली",
		},
	},
	detect.SignalGANNoise: {
		severity: models.SeverityHigh,
		text: map[string]string{
			"en": "GAN noise fingerprint detected",
			"hi": "GAN शोर फ़िंगरप्रिंट पाया गया",
			"mr": "GAN नॉइज फिंगरप्रिंट आढळले",
		},
	},
	detect.SignalSmoothing: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "Unnaturally smooth regions in the image",
			"hi": "छवि में अस्वाभाविक रूप से चिकने क्षेत्र",
			"mr": "प्रतिमेत अनैसर्गिकरीत्या गुळगुळीत भाग",
		},
	},
	detect.SignalTemporalJitter: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "Inconsistent encoding across video segments",
			"hi": "वीडियो खंडों में असंगत एन्कोडिंग",
			"mr": "व्हिडिओ खंडांमध्ये विसंगत एन्कोडिंग",
		},
	},
	detect.SignalSpectralFlat: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "Audio spectrum lacks natural room noise",
			"hi": "ऑडियो में स्वाभाविक परिवेश शोर का अभाव",
			"mr": "ऑडिओमध्ये नैसर्गिक पार्श्वध्वनीचा अभाव",
		},
	},
	detect.SignalStockPhrasing: {
		severity: models.SeverityHigh,
		text: map[string]string{
			"en": "Writing contains characteristic AI phrasing",
			"hi": "लेखन में विशिष्ट AI वाक्यांश शामिल हैं",
			"mr": "लेखनात वैशिष्ट्यपूर्ण AI वाक्यरचना आहे",
		},
	},
	detect.SignalLowBurstiness: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "Sentence rhythm is unusually uniform",
			"hi": "वाक्य लय असामान्य रूप से एकसमान है",
			"mr": "वाक्यांची लय असामान्यपणे एकसारखी आहे",
		},
	},
	detect.SignalHighRepetition: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "Vocabulary repetition above human baseline",
			"hi": "शब्दावली दोहराव मानवीय स्तर से अधिक",
			"mr": "शब्दसंग्रहाची पुनरावृत्ती मानवी पातळीपेक्षा जास्त",
		},
	},
	metadata.FindingEXIFAbsent: {
		severity: models.SeverityHigh,
		text: map[string]string{
			"en": "EXIF metadata absent",
			"hi": "EXIF मेटाडेटा अनुपस्थित",
			"mr": "EXIF मेटाडेटा अनुपस्थित",
		},
	},
	metadata.FindingSoftwareTag: {
		severity: models.SeverityMedium,
		text: map[string]string{
			"en": "File carries an editing-software tag",
			"hi": "फ़ाइल में संपादन सॉफ़्टवेयर टैग है",
			"mr": "फाइलमध्ये संपादन सॉफ्टवेअर टॅग आहे",
		},
	},
	metadata.FindingEXIFPresent: {
		severity: models.SeverityLow,
		text: map[string]string{
			"en": "Camera metadata intact",
			"hi": "कैमरा मेटाडेटा बरकरार",
			"mr": "कॅमेरा मेटाडेटा शाबूत",
		},
	},
	metadata.FindingC2PAClaim: {
		severity: models.SeverityLow,
		text: map[string]string{
			"en": "C2PA provenance claim present",
			"hi": "C2PA उद्गम दावा मौजूद",
			"mr": "C2PA उगम दावा उपस्थित",
		},
	},
	ruleCMCECritical: {
		severity: models.SeverityHigh,
		text: map[string]string{
			"en": "Caption claim contradicts the detected visual content",
			"hi": "कैप्शन का दावा पहचानी गई दृश्य सामग्री का खंडन करता है",
			"mr": "कॅप्शनमधील दावा आढळलेल्या दृश्य सामग्रीशी विसंगत आहे",
		},
	},
}

// buildIndicators renders the triggered rules in every supported
// language, in the fixed catalog order.
func buildIndicators(in Input) map[string][]models.Indicator {
	triggered := make(map[string]bool)
	for _, ev := range in.Evidence {
		for _, sig := range ev.Signals {
			triggered[sig] = true
		}
	}
	for _, finding := range in.MetadataFindings {
		triggered[finding] = true
	}
	if in.CMCE.Risk == models.CMCERiskCritical {
		triggered[ruleCMCECritical] = true
	}

	out := make(map[string][]models.Indicator, len(Languages))
	for _, lang := range Languages {
		var list []models.Indicator
		for _, code := range ruleOrder {
			if !triggered[code] {
				continue
			}
			rule := indicatorCatalog[code]
			list = append(list, models.Indicator{
				Severity: rule.severity,
				Text:     rule.text[lang],
			})
		}
		out[lang] = list
	}
	return out
}
