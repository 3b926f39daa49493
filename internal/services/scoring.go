package services

import (
	"fmt"
	"math"

	"github.com/qiranapp/qiran/internal/models"
)

// Blend weights, a policy constant. They sum to 1.0.
const (
	weightReligious = 0.25
	weightEducation = 0.15
	weightAge       = 0.15
	weightLocation  = 0.10
	weightInterests = 0.15
	weightTimeline  = 0.10
	weightEmbedding = 0.10
)

const (
	// Each step apart on an ordered scale costs this many points.
	scaleStepPenalty = 25.0

	// Subscores above this are worth mentioning as a reason.
	notableThreshold = 70.0

	maxReasons = 4
)

// CosineSimilarity returns dot(a,b) / (|a|·|b|), or 0 when either vector is
// empty, zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// cosineScore maps similarity to the 0-100 scale used by the rule subscores.
func cosineScore(a, b []float32) float64 {
	sim := CosineSimilarity(a, b)
	if sim <= 0 {
		return 0
	}
	return sim * 100
}

// scaleScore scores closeness on an ordered scale: exact match 100, each
// step of difference subtracts a fixed penalty, floor 0. Unknown values
// degrade to a neutral 50 rather than failing the request.
func scaleScore(scale []string, a, b string) float64 {
	ia, ib := models.ScaleIndex(scale, a), models.ScaleIndex(scale, b)
	if ia < 0 || ib < 0 {
		return 50
	}
	diff := float64(ia - ib)
	if diff < 0 {
		diff = -diff
	}
	score := 100 - diff*scaleStepPenalty
	if score < 0 {
		return 0
	}
	return score
}

func ageScore(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 50
	}
	diff := float64(a - b)
	if diff < 0 {
		diff = -diff
	}
	score := 100 - diff*5
	if score < 0 {
		return 0
	}
	return score
}

func locationScore(a, b *models.Profile) float64 {
	switch {
	case a.City != "" && a.City == b.City:
		return 100
	case a.Country != "" && a.Country == b.Country:
		return 70
	default:
		return 30
	}
}

// interestsScore is the shared-interest ratio against the requester's list.
func interestsScore(requester, candidate []string) (float64, []string) {
	if len(requester) == 0 {
		return 50, nil
	}
	set := make(map[string]bool, len(candidate))
	for _, it := range candidate {
		set[it] = true
	}
	var shared []string
	for _, it := range requester {
		if set[it] {
			shared = append(shared, it)
		}
	}
	return 100 * float64(len(shared)) / float64(len(requester)), shared
}

func timelineScore(a, b string) float64 {
	if a != "" && a == b {
		return 100
	}
	return 50
}

// ruleScores bundles the deterministic demographic subscores.
type ruleScores struct {
	religious float64
	education float64
	age       float64
	location  float64
	interests float64
	timeline  float64
	shared    []string
}

func computeRuleScores(requester, candidate *models.Profile) ruleScores {
	rs := ruleScores{
		religious: scaleScore(models.PracticeLevels, requester.ReligiousLevel, candidate.ReligiousLevel),
		education: scaleScore(models.EducationLevels, requester.EducationLevel, candidate.EducationLevel),
		age:       ageScore(requester.Age, candidate.Age),
		location:  locationScore(requester, candidate),
		timeline:  timelineScore(requester.MarriageTimeline, candidate.MarriageTimeline),
	}
	rs.interests, rs.shared = interestsScore(requester.Interests, candidate.Interests)
	return rs
}

func blendScore(rs ruleScores, bioSimilarity float64) float64 {
	return rs.religious*weightReligious +
		rs.education*weightEducation +
		rs.age*weightAge +
		rs.location*weightLocation +
		rs.interests*weightInterests +
		rs.timeline*weightTimeline +
		bioSimilarity*weightEmbedding
}

// buildReasons picks up to four human-readable reasons from subscores that
// cleared the notable threshold, in fixed priority order.
func buildReasons(rs ruleScores) []string {
	var reasons []string
	add := func(r string) {
		if len(reasons) < maxReasons {
			reasons = append(reasons, r)
		}
	}
	if rs.religious > notableThreshold {
		add("Similar level of religious practice")
	}
	if rs.education > notableThreshold {
		add("Comparable education background")
	}
	if rs.interests > notableThreshold && len(rs.shared) > 0 {
		add(fmt.Sprintf("You share %d interests", len(rs.shared)))
	}
	if rs.location > notableThreshold {
		if rs.location >= 100 {
			add("Lives in the same city")
		} else {
			add("Lives in the same country")
		}
	}
	return reasons
}

func buildExplanation(overall float64) string {
	switch {
	case overall >= 80:
		return "Strong overall compatibility across faith, background and interests."
	case overall >= 60:
		return "Good compatibility with some differences worth exploring."
	case overall >= 40:
		return "Moderate compatibility; key preferences differ."
	default:
		return "Limited compatibility based on profile attributes."
	}
}
