package model

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment types recognized by the matching engine. XDMIQ is the
// preferred capability assessment and always wins over a generic one
// when both exist for a user.
const (
	AssessmentTypeXDMIQ   = "xdmiq"
	AssessmentTypeGeneric = "generic"
)

// AnonymousUser is a platform member identified only by an opaque id
// and a display alias. No PII is stored on this entity.
type AnonymousUser struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Alias     string `json:"alias"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CapabilityAssessment holds the outcome of one assessment run for a
// user. Results is a loosely-typed payload whose shape depends on
// AssessmentType; internal/profile decodes it into typed structs.
type CapabilityAssessment struct {
	ID             uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string            `gorm:"index" json:"user_id"`
	AssessmentType string            `json:"assessment_type"`
	Results        datatypes.JSONMap `json:"results"`
	CreatedAt      time.Time         `json:"created_at"`
}

// JobPosting is a marketplace posting. Only active postings are
// eligible match candidates.
type JobPosting struct {
	ID              string                       `gorm:"primaryKey" json:"id"`
	Title           string                       `json:"title"`
	Company         string                       `json:"company"`
	RequiredSkills  datatypes.JSONSlice[string]  `json:"required_skills"`
	PreferredSkills datatypes.JSONSlice[string]  `json:"preferred_skills"`
	Active          bool                         `gorm:"index" json:"active"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

// Match is one generated user/job pairing with its component scores.
//
// MatchScore, CompatibilityScore and LongevityScore are integers in
// [0,100]. PredictedMonths is one of 3, 6, 12, 18, 24 or 36. Rows are
// immutable after generation except for the human review fields, which
// are written by each review call.
type Match struct {
	ID                 string                      `gorm:"primaryKey" json:"id"`
	UserID             string                      `gorm:"index" json:"user_id"`
	JobPostingID       string                      `gorm:"index" json:"job_posting_id"`
	MatchScore         int                         `json:"match_score"`
	CompatibilityScore int                         `json:"compatibility_score"`
	LongevityScore     int                         `json:"longevity_score"`
	PredictedMonths    int                         `json:"predicted_months"`
	LongevityFactors   datatypes.JSONSlice[string] `json:"longevity_factors"`
	MatchReasons       datatypes.JSONSlice[string] `json:"match_reasons"`
	AISummary          string                      `json:"ai_summary,omitempty"`
	HumanReviewed      bool                        `json:"human_reviewed"`
	HumanReviewerID    *string                     `json:"human_reviewer_id,omitempty"`
	HumanFeedback      *string                     `json:"human_feedback,omitempty"`
	CheckpointID       string                      `json:"checkpoint_id"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// Checkpoint is an append-only audit record of a decision made by the
// matching engine, referenced back from the entity it snapshots.
type Checkpoint struct {
	ID             string            `gorm:"primaryKey" json:"id"`
	CheckpointType string            `json:"checkpoint_type"`
	EntityID       string            `gorm:"index" json:"entity_id"`
	StateData      datatypes.JSONMap `json:"state_data"`
	CreatedBy      string            `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
}
