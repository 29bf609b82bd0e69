package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/ai"
	"github.com/xdmiq/jobmatch/internal/filtering"
	"github.com/xdmiq/jobmatch/internal/model"
	"github.com/xdmiq/jobmatch/internal/profile"
)

// Blend weights for the final match score. Longevity is deliberately
// weighted higher than immediate fit: the product favors durable
// matches over superficial skill overlap.
const (
	compatibilityWeight = 0.4
	longevityWeight     = 0.6
)

const (
	// DefaultLimit is the result limit used when the caller passes none.
	DefaultLimit = 10

	// candidateOverfetch over-fetches active postings so the ranking
	// step still has material after the admission filter.
	candidateOverfetch = 3

	// RejectionPenalty is the flat score reduction applied by a
	// "rejected" review. Repeated rejections subtract it again; that
	// non-idempotence is part of the review contract.
	RejectionPenalty = 20
)

// Review decisions accepted by HumanReviewMatch.
const (
	DecisionApproved      = "approved"
	DecisionRejected      = "rejected"
	DecisionNeedsRevision = "needs_revision"
)

// needsRevisionNote is appended to the match reasons by a
// needs_revision review. The score is left untouched and no automatic
// re-generation happens.
const needsRevisionNote = "Needs refinement"

// Checkpoint types recorded by the engine.
const (
	CheckpointMatchGenerated = "match_generated"
	CheckpointMatchReviewed  = "match_reviewed"
)

const engineActor = "matching-engine"

// Precondition failures surfaced to the caller. The web layer maps
// them to 4xx responses.
var (
	ErrNoAssessment  = errors.New("user has no capability assessment")
	ErrUserNotFound  = errors.New("user not found")
	ErrMatchNotFound = errors.New("match not found")
)

// AssessmentStore lists a user's capability assessments.
type AssessmentStore interface {
	ListAssessments(ctx context.Context, userID string) ([]model.CapabilityAssessment, error)
}

// UserStore resolves anonymous users. A missing user is (nil, nil).
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.AnonymousUser, error)
}

// JobStore lists active postings, newest first.
type JobStore interface {
	ListActiveJobs(ctx context.Context, limit int) ([]model.JobPosting, error)
}

// MatchStore persists matches. Get returns (nil, nil) for a missing id.
type MatchStore interface {
	InsertMatch(ctx context.Context, match *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	UpdateMatch(ctx context.Context, match *model.Match) error
	ListUserMatches(ctx context.Context, userID string, limit int) ([]model.Match, error)
}

// Checkpointer durably records a decision snapshot and returns the
// created checkpoint.
type Checkpointer interface {
	Create(ctx context.Context, checkpointType, entityID string, state map[string]any, createdBy string) (*model.Checkpoint, error)
}

// Deps aggregates the collaborators consumed by the engine. Summarizer
// and the filter chain are optional; everything else is required.
type Deps struct {
	Assessments  AssessmentStore
	Users        UserStore
	Jobs         JobStore
	Matches      MatchStore
	Checkpoints  Checkpointer
	Summarizer   ai.Summarizer
	Filters      []filtering.Filter
	FilterConfig *filtering.Config
	Logger       *zap.Logger
}

// Engine orchestrates match generation and human review. Each call is
// synchronous and single-attempt; the persistent store is the only
// shared state between calls.
type Engine struct {
	deps Deps
}

// New validates the required collaborators and builds an Engine.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Assessments == nil:
		return nil, fmt.Errorf("matching.Engine: assessment store is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("matching.Engine: user store is required")
	case deps.Jobs == nil:
		return nil, fmt.Errorf("matching.Engine: job store is required")
	case deps.Matches == nil:
		return nil, fmt.Errorf("matching.Engine: match store is required")
	case deps.Checkpoints == nil:
		return nil, fmt.Errorf("matching.Engine: checkpointer is required")
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Engine{deps: deps}, nil
}

// candidate is a posting that survived the admission filter, scored and
// awaiting ranking.
type candidate struct {
	job        model.JobPosting
	compat     int
	longevity  Longevity
	finalScore int
	reasons    []string
}

// GenerateMatches scores the active postings against the user's primary
// capability assessment and persists one Match per surviving candidate,
// ranked by final score and truncated to limit.
//
// Persistence is best effort: there is no transaction around the batch,
// so when a later insert fails, earlier rows remain and are returned
// alongside the error.
func (e *Engine) GenerateMatches(ctx context.Context, userID string, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	assessments, err := e.deps.Assessments.ListAssessments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}

	primary := profile.SelectPrimaryAssessment(assessments)
	if primary == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoAssessment)
	}

	user, err := e.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}

	userProfile, err := profile.FromAssessment(primary)
	if err != nil {
		return nil, fmt.Errorf("build user profile: %w", err)
	}

	jobs, err := e.deps.Jobs.ListActiveJobs(ctx, limit*candidateOverfetch)
	if err != nil {
		return nil, fmt.Errorf("list active postings: %w", err)
	}

	if len(e.deps.Filters) > 0 {
		jobs, err = filtering.Run(ctx, e.deps.FilterConfig, filtering.Deps{
			Matches: e.deps.Matches,
			Logger:  e.deps.Logger,
			UserID:  userID,
		}, e.deps.Filters, jobs)
		if err != nil {
			return nil, fmt.Errorf("filter postings: %w", err)
		}
	}

	candidates := e.scoreCandidates(userProfile, jobs)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].finalScore > candidates[j].finalScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	e.deps.Logger.Info("ranked match candidates",
		zap.String("user_id", userID),
		zap.Int("initial", len(jobs)),
		zap.Int("dropped", len(jobs)-len(candidates)),
		zap.Int("left", len(candidates)),
	)

	matches := make([]model.Match, 0, len(candidates))
	for _, c := range candidates {
		match, err := e.persistMatch(ctx, user, c)
		if err != nil {
			return matches, fmt.Errorf("persist match for posting %s: %w", c.job.ID, err)
		}
		matches = append(matches, *match)
	}

	return matches, nil
}

// scoreCandidates applies the admission filter and computes the blended
// score per surviving posting.
func (e *Engine) scoreCandidates(userProfile profile.UserProfile, jobs []model.JobPosting) []candidate {
	var candidates []candidate
	for _, job := range jobs {
		compat := CompatibilityScore(userProfile.Skills, userProfile.Proficiency, job.RequiredSkills, job.PreferredSkills)
		if compat < MinCompatibility {
			e.deps.Logger.Debug("posting below admission threshold",
				zap.String("job_id", job.ID),
				zap.Int("compatibility", compat),
			)
			continue
		}

		longevity := PredictLongevity(userProfile, profile.FromJobPosting(job), compat)
		final := blend(compat, longevity.Score)

		candidates = append(candidates, candidate{
			job:        job,
			compat:     compat,
			longevity:  longevity,
			finalScore: final,
			reasons:    matchReasons(userProfile.Skills, job, compat, longevity.Factors),
		})
	}
	return candidates
}

// blend combines the two component scores into the final match score.
func blend(compatibility, longevity int) int {
	return int(math.Round(float64(compatibility)*compatibilityWeight + float64(longevity)*longevityWeight))
}

// persistMatch inserts the match row, records its generation
// checkpoint, opportunistically attaches an AI summary and writes the
// final state back.
func (e *Engine) persistMatch(ctx context.Context, user *model.AnonymousUser, c candidate) (*model.Match, error) {
	match := &model.Match{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		JobPostingID:       c.job.ID,
		MatchScore:         c.finalScore,
		CompatibilityScore: c.compat,
		LongevityScore:     c.longevity.Score,
		PredictedMonths:    c.longevity.PredictedMonths,
		LongevityFactors:   c.longevity.Factors,
		MatchReasons:       c.reasons,
	}

	if err := e.deps.Matches.InsertMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	cp, err := e.deps.Checkpoints.Create(ctx, CheckpointMatchGenerated, match.ID, map[string]any{
		"match_id":       match.ID,
		"user_id":        match.UserID,
		"job_posting_id": match.JobPostingID,
		"match_score":    match.MatchScore,
		"match_reasons":  []string(match.MatchReasons),
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}, engineActor)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	match.CheckpointID = cp.ID

	e.attachSummary(ctx, user, c, match)

	if err := e.deps.Matches.UpdateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	return match, nil
}

// attachSummary asks the optional summarizer for a narrative. Failures
// are logged and swallowed; the match keeps its canonical reasons.
func (e *Engine) attachSummary(ctx context.Context, user *model.AnonymousUser, c candidate, match *model.Match) {
	if e.deps.Summarizer == nil {
		return
	}

	summary, err := e.deps.Summarizer.Summarize(ctx, &ai.MatchContext{
		UserAlias:          user.Alias,
		JobTitle:           c.job.Title,
		Company:            c.job.Company,
		MatchScore:         match.MatchScore,
		CompatibilityScore: match.CompatibilityScore,
		LongevityScore:     match.LongevityScore,
		PredictedMonths:    match.PredictedMonths,
		Reasons:            match.MatchReasons,
		Factors:            match.LongevityFactors,
	})
	if err != nil {
		e.deps.Logger.Warn("match summary unavailable",
			zap.String("match_id", match.ID),
			zap.Error(err),
		)
		return
	}

	match.AISummary = summary
}

// HumanReviewMatch applies a manual decision to a persisted match and
// records a follow-up checkpoint.
//
// "approved" leaves the score unchanged, "rejected" subtracts the flat
// RejectionPenalty down to zero, "needs_revision" appends a note and
// changes nothing else. Reviewing an already reviewed match applies the
// decision again; in particular a second rejection subtracts another
// penalty.
func (e *Engine) HumanReviewMatch(ctx context.Context, matchID, reviewerID, decision string, feedback *string) (*model.Match, error) {
	switch decision {
	case DecisionApproved, DecisionRejected, DecisionNeedsRevision:
	default:
		return nil, fmt.Errorf("invalid review decision: %q", decision)
	}

	match, err := e.deps.Matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if match == nil {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}

	match.HumanReviewed = true
	match.HumanReviewerID = &reviewerID
	match.HumanFeedback = feedback

	switch decision {
	case DecisionRejected:
		match.MatchScore -= RejectionPenalty
		if match.MatchScore < 0 {
			match.MatchScore = 0
		}
	case DecisionNeedsRevision:
		match.MatchReasons = append(match.MatchReasons, needsRevisionNote)
	}

	if err := e.deps.Matches.UpdateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("update match: %w", err)
	}

	state := map[string]any{
		"match_id":    match.ID,
		"user_id":     match.UserID,
		"match_score": match.MatchScore,
		"reviewer_id": reviewerID,
		"decision":    decision,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if feedback != nil {
		state["feedback"] = *feedback
	}

	cp, err := e.deps.Checkpoints.Create(ctx, CheckpointMatchReviewed, match.ID, state, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	match.CheckpointID = cp.ID
	if err := e.deps.Matches.UpdateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("store checkpoint id: %w", err)
	}

	e.deps.Logger.Info("match reviewed",
		zap.String("match_id", match.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("decision", decision),
		zap.Int("match_score", match.MatchScore),
	)

	return match, nil
}

// GetMatch returns a persisted match by id.
func (e *Engine) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	match, err := e.deps.Matches.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if match == nil {
		return nil, fmt.Errorf("match %s: %w", id, ErrMatchNotFound)
	}
	return match, nil
}

// ListUserMatches returns the user's matches ordered by match score
// descending.
func (e *Engine) ListUserMatches(ctx context.Context, userID string, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches, err := e.deps.Matches.ListUserMatches(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}
