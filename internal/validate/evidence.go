package validate

import (
	"fmt"
	"strings"

	"github.com/paulyokota/feedforward/internal/model"
)

// minExcerptLength is the shortest trimmed excerpt accepted as real
// conversation evidence.
const minExcerptLength = 20

// recommendedCoverage is the fraction of records that must carry a
// recommended field before the group avoids a coverage warning.
const recommendedCoverage = 0.8

// placeholderPatterns are normalized substrings that identify template
// text shipped instead of a real excerpt. A historical backfill once put
// these straight into production tickets; matching any of them is a hard
// validation failure.
var placeholderPatterns = []string{
	"sample conversations were not captured",
	"to gather evidence",
	"no excerpt available",
	"placeholder",
	"example conversation",
	"[insert excerpt",
}

// EvidenceValidator checks that a candidate group's supporting samples
// are complete and non-placeholder before a ticket may be created.
type EvidenceValidator struct {
	patterns []string
}

// NewEvidenceValidator creates a validator with the built-in placeholder
// patterns plus any extras.
func NewEvidenceValidator(extraPatterns ...string) *EvidenceValidator {
	patterns := make([]string, 0, len(placeholderPatterns)+len(extraPatterns))
	patterns = append(patterns, placeholderPatterns...)
	for _, p := range extraPatterns {
		patterns = append(patterns, normalizeText(p))
	}
	return &EvidenceValidator{patterns: patterns}
}

// Validate applies the field tier rules to every record in the group.
// Missing required fields or placeholder excerpts fail validation and
// block ticket creation; thin recommended-field coverage only produces
// warnings and flags the eventual ticket as poor evidence.
func (v *EvidenceValidator) Validate(group model.CandidateGroup) model.EvidenceQuality {
	quality := model.EvidenceQuality{
		IsValid:  true,
		Coverage: map[string]float64{},
	}
	if group.Size() == 0 {
		quality.IsValid = false
		quality.Errors = append(quality.Errors, "group has no records")
		return quality
	}

	counts := map[string]int{}
	for _, r := range group.Records {
		if strings.TrimSpace(r.ConversationID) != "" {
			counts["id"]++
		} else {
			quality.Errors = append(quality.Errors, "record missing conversation id")
		}

		if err := v.checkExcerpt(r); err != nil {
			quality.Errors = append(quality.Errors, err.Error())
		} else {
			counts["excerpt"]++
		}

		if strings.TrimSpace(r.Email) != "" {
			counts["email"]++
		}
		if strings.TrimSpace(r.IntercomURL) != "" {
			counts["intercom_url"]++
		}
	}

	total := float64(group.Size())
	for _, field := range []string{"id", "excerpt", "email", "intercom_url"} {
		quality.Coverage[field] = float64(counts[field]) / total
	}

	for _, field := range []string{"email", "intercom_url"} {
		if quality.Coverage[field] < recommendedCoverage {
			quality.Warnings = append(quality.Warnings,
				fmt.Sprintf("%s coverage %.0f%% is below %.0f%%", field, quality.Coverage[field]*100, recommendedCoverage*100))
		}
	}

	if len(quality.Errors) > 0 {
		quality.IsValid = false
	}
	return quality
}

// checkExcerpt enforces the required-excerpt rules for one record.
func (v *EvidenceValidator) checkExcerpt(r model.ThemeRecord) error {
	excerpt := strings.TrimSpace(r.Excerpt)
	if excerpt == "" {
		return fmt.Errorf("conversation %s: missing excerpt", r.ConversationID)
	}
	if len(excerpt) <= minExcerptLength {
		return fmt.Errorf("conversation %s: excerpt too short (%d chars)", r.ConversationID, len(excerpt))
	}

	normalized := normalizeText(excerpt)
	for _, pattern := range v.patterns {
		if strings.Contains(normalized, pattern) {
			return fmt.Errorf("conversation %s: excerpt matches placeholder pattern %q", r.ConversationID, pattern)
		}
	}
	return nil
}

// normalizeText lowercases and collapses whitespace so placeholder
// matching survives formatting differences.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
