package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Facet names, in generation order.
const (
	FacetGeneral     = "general"
	FacetValues      = "values"
	FacetInterests   = "interests"
	FacetLifestyle   = "lifestyle"
	FacetPersonality = "personality"
)

var Facets = []string{FacetGeneral, FacetValues, FacetInterests, FacetLifestyle, FacetPersonality}

// ProfileEmbeddings holds one fixed-dimension vector per facet.
// All five vectors share the same dimension; the record is regenerated as a
// whole whenever the profile changes.
type ProfileEmbeddings struct {
	UserID string `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`

	General     pgvector.Vector `gorm:"column:general_embedding;type:vector(768)" json:"general_embedding"`
	Values      pgvector.Vector `gorm:"column:values_embedding;type:vector(768)" json:"values_embedding"`
	Interests   pgvector.Vector `gorm:"column:interests_embedding;type:vector(768)" json:"interests_embedding"`
	Lifestyle   pgvector.Vector `gorm:"column:lifestyle_embedding;type:vector(768)" json:"lifestyle_embedding"`
	Personality pgvector.Vector `gorm:"column:personality_embedding;type:vector(768)" json:"personality_embedding"`

	Model         string    `gorm:"column:model;type:text" json:"model"`
	Dimension     int       `gorm:"column:dimension" json:"dimension"`
	TokenEstimate int       `gorm:"column:token_estimate" json:"token_estimate"`
	GeneratedAt   time.Time `gorm:"column:generated_at;type:timestamptz" json:"generated_at"`
}

func (ProfileEmbeddings) TableName() string { return "profile_embeddings" }

// Facet returns the vector for a named facet (nil slice if unknown).
func (e *ProfileEmbeddings) Facet(name string) []float32 {
	switch name {
	case FacetGeneral:
		return e.General.Slice()
	case FacetValues:
		return e.Values.Slice()
	case FacetInterests:
		return e.Interests.Slice()
	case FacetLifestyle:
		return e.Lifestyle.Slice()
	case FacetPersonality:
		return e.Personality.Slice()
	default:
		return nil
	}
}

// SetFacet assigns the vector for a named facet.
func (e *ProfileEmbeddings) SetFacet(name string, v []float32) {
	vec := pgvector.NewVector(v)
	switch name {
	case FacetGeneral:
		e.General = vec
	case FacetValues:
		e.Values = vec
	case FacetInterests:
		e.Interests = vec
	case FacetLifestyle:
		e.Lifestyle = vec
	case FacetPersonality:
		e.Personality = vec
	}
}
