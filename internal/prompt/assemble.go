// Package prompt turns structured studio selections into the instruction
// text sent to the image model. Every builder goes through Assemble so that
// ordering and omission rules are the same in every view.
package prompt

import (
	"fmt"
	"strings"
)

// Quality is a generation quality tier.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	QualityUltra    Quality = "ultra"
)

var qualitySuffix = map[Quality]string{
	QualityStandard: "Image quality: standard.",
	QualityHigh:     "Image quality: high, 4K, detailed.",
	QualityUltra:    "Image quality: ultra, 8K, hyperrealistic, razor-sharp detail.",
}

// Qualities lists the tiers from lowest to highest.
func Qualities() []Quality {
	return []Quality{QualityStandard, QualityHigh, QualityUltra}
}

// ParseQuality accepts the tier names plus a few shorthands.
func ParseQuality(value string) (Quality, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standard", "std", "sd":
		return QualityStandard, true
	case "high", "hd", "4k":
		return QualityHigh, true
	case "ultra", "uhd", "8k":
		return QualityUltra, true
	}
	return "", false
}

// Suffix returns the fixed clause for the tier, or "" for an unknown tier.
func (q Quality) Suffix() string {
	return qualitySuffix[q]
}

// FaceLockClause always comes first when face preservation is requested.
const FaceLockClause = "TOP PRIORITY (NON-NEGOTIABLE): for any person in the image, use the face from the face reference image. " +
	"Preserve the face and every facial feature with 100% fidelity. Do not alter the face in any way."

// Clause is one optional sentence of a prompt. The zero Clause is omitted.
type Clause struct {
	text string
}

// Describe formats value into format, or yields an empty clause when value
// is blank.
func Describe(format, value string) Clause {
	value = strings.TrimSpace(value)
	if value == "" {
		return Clause{}
	}
	return Clause{text: fmt.Sprintf(format, value)}
}

// Toggle yields text only when on is set.
func Toggle(on bool, text string) Clause {
	if !on {
		return Clause{}
	}
	return Fixed(text)
}

// Fixed always yields text.
func Fixed(text string) Clause {
	return Clause{text: strings.TrimSpace(text)}
}

func (c Clause) String() string {
	return c.text
}

// Config enumerates everything a prompt can be built from.
type Config struct {
	PreserveFace bool
	Intro        string
	Clauses      []Clause
	Quality      Quality
	// Supplement is free text from the user, appended last and unmodified.
	Supplement string
}

// Assemble joins the parts in a fixed order: face lock, intro, clauses,
// quality, supplement. Empty parts are skipped, so identical configs always
// produce identical strings.
func Assemble(cfg Config) string {
	parts := make([]string, 0, len(cfg.Clauses)+4)
	if cfg.PreserveFace {
		parts = append(parts, FaceLockClause)
	}
	if intro := strings.TrimSpace(cfg.Intro); intro != "" {
		parts = append(parts, intro)
	}
	for _, c := range cfg.Clauses {
		if c.text != "" {
			parts = append(parts, c.text)
		}
	}
	if suffix := cfg.Quality.Suffix(); suffix != "" {
		parts = append(parts, suffix)
	}
	if strings.TrimSpace(cfg.Supplement) != "" {
		parts = append(parts, cfg.Supplement)
	}
	return strings.Join(parts, "\n")
}
