package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/qiranapp/qiran/internal/models"
)

// Facet texts are composed deterministically from profile fields plus fixed
// domain phrases: identical profiles always produce identical text, which is
// what makes content-hash deduplication across profiles work.

func buildFacetText(facet string, p *models.Profile, prefs *models.Preferences) string {
	switch facet {
	case models.FacetGeneral:
		return generalFacet(p)
	case models.FacetValues:
		return valuesFacet(p, prefs)
	case models.FacetInterests:
		return interestsFacet(p)
	case models.FacetLifestyle:
		return lifestyleFacet(p)
	case models.FacetPersonality:
		return personalityFacet(p)
	default:
		return ""
	}
}

func generalFacet(p *models.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d-year-old %s from %s, %s.", p.Age, orUnspecified(p.Gender), orUnspecified(p.City), orUnspecified(p.Country))
	fmt.Fprintf(&b, " Religious practice: %s.", orUnspecified(p.ReligiousLevel))
	fmt.Fprintf(&b, " Education: %s.", orUnspecified(p.EducationLevel))
	if p.Occupation != "" {
		fmt.Fprintf(&b, " Works as %s.", p.Occupation)
	}
	if p.Bio != "" {
		b.WriteString(" About: " + p.Bio)
	}
	return b.String()
}

func valuesFacet(p *models.Profile, prefs *models.Preferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Values and faith: a %s Muslim seeking marriage %s.",
		orUnspecified(p.ReligiousLevel), timelinePhrase(p.MarriageTimeline))
	if len(p.FamilyValues) > 0 {
		fmt.Fprintf(&b, " Family values: %s.", strings.Join(p.FamilyValues, ", "))
	}
	if prefs != nil && prefs.LookingFor != "" {
		b.WriteString(" Looking for: " + prefs.LookingFor)
	}
	return b.String()
}

func interestsFacet(p *models.Profile) string {
	var b strings.Builder
	b.WriteString("Interests and hobbies:")
	if len(p.Interests) > 0 {
		b.WriteString(" " + strings.Join(p.Interests, ", ") + ".")
	} else {
		b.WriteString(" not specified.")
	}
	if len(p.Languages) > 0 {
		fmt.Fprintf(&b, " Speaks %s.", strings.Join(p.Languages, ", "))
	}
	return b.String()
}

func lifestyleFacet(p *models.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lifestyle: lives in %s, %s.", orUnspecified(p.City), orUnspecified(p.Country))
	if p.Occupation != "" {
		fmt.Fprintf(&b, " Career in %s.", p.Occupation)
	}
	fmt.Fprintf(&b, " Daily religious practice level: %s.", orUnspecified(p.ReligiousLevel))
	return b.String()
}

func personalityFacet(p *models.Profile) string {
	var b strings.Builder
	b.WriteString("Personality and character:")
	if p.Bio != "" {
		b.WriteString(" " + p.Bio)
	} else {
		b.WriteString(" reserved about themselves.")
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, " Enjoys %s.", strings.Join(p.Interests, " and "))
	}
	return b.String()
}

func timelinePhrase(timeline string) string {
	switch timeline {
	case "within_6_months":
		return "within six months"
	case "within_1_year":
		return "within a year"
	case "within_2_years":
		return "within two years"
	default:
		return "when the time is right"
	}
}

func orUnspecified(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}

// contentHash keys facet embeddings: identical facet text across profiles
// shares one cache entry.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func facetCacheKey(facet, hash string) string {
	return "embedding:" + facet + ":" + hash
}

func compositeCacheKey(userID string) string {
	return "profile_embeddings:" + userID
}
