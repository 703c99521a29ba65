package worldmodel

import (
	"strings"

	"mizan/internal/logging"
)

// The medical/diagnostic claims gate. Intervention steps are framework
// guidance, never clinical advice: any node- or edge-derived text headed into
// a plan must pass this gate or the step is silently dropped. Text is never
// sanitized and re-admitted.

// forbiddenTerms is the fixed built-in list, matched against normalized text.
// Arabic entries are stored without diacritics; normalizeClaimText strips
// them from the input before matching.
var forbiddenTerms = []string{
	// English
	"diagnos",       // diagnosis, diagnose, diagnostic
	"medication",
	"prescription",
	"prescribe",
	"clinical",
	"psychiatric",
	"antidepressant",
	"therapy session",
	"disorder",
	"syndrome",
	"disease",
	"illness",
	"dosage",

	// Arabic
	"تشخيص",      // diagnosis
	"دواء",        // medication
	"أدوية",       // medications
	"وصفة طبية",  // prescription
	"علاج سريري", // clinical treatment
	"علاج نفسي",  // psychiatric treatment
	"اضطراب",     // disorder
	"مرض",         // disease
	"جرعة",        // dosage
	"مضاد اكتئاب", // antidepressant
}

// ClaimsGate validates text against the forbidden-term list. Extra terms can
// be configured; the built-in list is always active.
type ClaimsGate struct {
	terms []string
}

// NewClaimsGate builds a gate from the built-in list plus extra configured
// terms (normalized on the way in).
func NewClaimsGate(extraTerms []string) *ClaimsGate {
	terms := make([]string, 0, len(forbiddenTerms)+len(extraTerms))
	for _, t := range forbiddenTerms {
		terms = append(terms, normalizeClaimText(t))
	}
	for _, t := range extraTerms {
		if t = normalizeClaimText(t); t != "" {
			terms = append(terms, t)
		}
	}
	return &ClaimsGate{terms: terms}
}

// ValidateNoMedicalClaims returns false if the normalized text contains any
// forbidden term. Empty text passes.
func (g *ClaimsGate) ValidateNoMedicalClaims(text string) bool {
	if text == "" {
		return true
	}
	normalized := normalizeClaimText(text)
	for _, term := range g.terms {
		if strings.Contains(normalized, term) {
			logging.PlannerDebug("ClaimsGate: rejected text containing %q", term)
			return false
		}
	}
	return true
}

// normalizeClaimText lowercases and folds Arabic orthography: diacritics
// (tashkeel) and tatweel are stripped, alef variants collapse to bare alef,
// and alef maqsura folds to yeh, so forbidden terms match regardless of how
// the source text was vocalized.
func normalizeClaimText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 0x064B && r <= 0x0652: // tashkeel
			continue
		case r == 0x0640: // tatweel
			continue
		case r == 'أ' || r == 'إ' || r == 'آ':
			b.WriteRune('ا')
		case r == 'ى':
			b.WriteRune('ي')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
