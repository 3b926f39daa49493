package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Ordered religious-practice scale, least to most observant.
var PracticeLevels = []string{"learning", "occasional", "practicing", "devout"}

// Ordered education scale.
var EducationLevels = []string{"high_school", "diploma", "bachelors", "masters", "doctorate"}

// Marriage timeline values (no ordering between them).
var MarriageTimelines = []string{"within_6_months", "within_1_year", "within_2_years", "when_ready"}

type Profile struct {
	UserID   string `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	FullName string `gorm:"column:full_name;type:text" json:"full_name"`
	Gender   string `gorm:"column:gender;type:text" json:"gender"` // male|female
	Age      int    `gorm:"column:age" json:"age"`

	City    string `gorm:"column:city;type:text" json:"city"`
	Country string `gorm:"column:country;type:text" json:"country"`

	ReligiousLevel   string `gorm:"column:religious_level;type:text" json:"religious_level"`
	EducationLevel   string `gorm:"column:education_level;type:text" json:"education_level"`
	Occupation       string `gorm:"column:occupation;type:text" json:"occupation"`
	MarriageTimeline string `gorm:"column:marriage_timeline;type:text" json:"marriage_timeline"`

	Bio string `gorm:"column:bio;type:text" json:"bio"`

	Interests    pq.StringArray `gorm:"column:interests;type:text[]" json:"interests"`
	Languages    pq.StringArray `gorm:"column:languages;type:text[]" json:"languages"`
	FamilyValues pq.StringArray `gorm:"column:family_values;type:text[]" json:"family_values"`

	// JSONB partner-preference snapshot (age range, accepted levels, ...)
	Preferences datatypes.JSON `gorm:"column:preferences;type:jsonb" json:"preferences"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Preferences is the decoded shape of Profile.Preferences.
type Preferences struct {
	AgeMin          int      `json:"age_min,omitempty"`
	AgeMax          int      `json:"age_max,omitempty"`
	ReligiousLevels []string `json:"religious_levels,omitempty"`
	EducationLevels []string `json:"education_levels,omitempty"`
	Countries       []string `json:"countries,omitempty"`
	LookingFor      string   `json:"looking_for,omitempty"` // free text, feeds the values facet
}

// ScaleIndex returns the position of v on an ordered scale, -1 if unknown.
func ScaleIndex(scale []string, v string) int {
	for i, s := range scale {
		if s == v {
			return i
		}
	}
	return -1
}
