package models

import "time"

// SimilarityScore is the blended 0-100 compatibility figure for one pairing.
// Produced fresh per scoring call, never persisted.
type SimilarityScore struct {
	Overall float64 `json:"overall"`

	Values      float64 `json:"values"`
	Interests   float64 `json:"interests"`
	Lifestyle   float64 `json:"lifestyle"`
	Personality float64 `json:"personality"`

	Demographics     float64 `json:"demographics"`
	IslamicAlignment float64 `json:"islamic_alignment"`

	Explanation string `json:"explanation"`
}

// MatchCandidate is one scored, ranked pairing returned to the caller.
type MatchCandidate struct {
	Candidate       ProfileSummary  `json:"candidate"`
	Score           SimilarityScore `json:"score"`
	SharedInterests []string        `json:"shared_interests"`
	Reasons         []string        `json:"reasons"`
}

// ProfileSummary is the candidate payload exposed over the API: enough to
// render a card, nothing private.
type ProfileSummary struct {
	UserID           string `json:"user_id"`
	FullName         string `json:"full_name"`
	Age              int    `json:"age"`
	City             string `json:"city"`
	Country          string `json:"country"`
	ReligiousLevel   string `json:"religious_level"`
	EducationLevel   string `json:"education_level"`
	Occupation       string `json:"occupation"`
	MarriageTimeline string `json:"marriage_timeline"`
}

func SummaryOf(p *Profile) ProfileSummary {
	return ProfileSummary{
		UserID:           p.UserID,
		FullName:         p.FullName,
		Age:              p.Age,
		City:             p.City,
		Country:          p.Country,
		ReligiousLevel:   p.ReligiousLevel,
		EducationLevel:   p.EducationLevel,
		Occupation:       p.Occupation,
		MarriageTimeline: p.MarriageTimeline,
	}
}

// MatchRun is the Mongo audit record for one generation request.
type MatchRun struct {
	RunID               string    `bson:"run_id" json:"run_id"`
	UserID              string    `bson:"user_id" json:"user_id"`
	CandidatesEvaluated int       `bson:"candidates_evaluated" json:"candidates_evaluated"`
	Returned            int       `bson:"returned" json:"returned"`
	DurationMS          int64     `bson:"duration_ms" json:"duration_ms"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
}

// Interaction records that a user has already seen/liked/passed a candidate.
// Interacted pairs are excluded from future rankings.
type Interaction struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	TargetID  string    `bson:"target_id" json:"target_id"`
	Kind      string    `bson:"kind" json:"kind"` // like|pass|view
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
