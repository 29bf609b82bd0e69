package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/xdmiq/jobmatch/internal/ai"
	"github.com/xdmiq/jobmatch/internal/filtering"
	"github.com/xdmiq/jobmatch/internal/model"
)

type stubStore struct {
	assessments []model.CapabilityAssessment
	user        *model.AnonymousUser
	jobs        []model.JobPosting

	lastJobLimit int
	inserted     []model.Match
	matches      map[string]model.Match
	insertErr    error
}

func newStubStore() *stubStore {
	return &stubStore{matches: make(map[string]model.Match)}
}

func (s *stubStore) ListAssessments(_ context.Context, _ string) ([]model.CapabilityAssessment, error) {
	return s.assessments, nil
}

func (s *stubStore) GetUser(_ context.Context, _ string) (*model.AnonymousUser, error) {
	return s.user, nil
}

func (s *stubStore) ListActiveJobs(_ context.Context, limit int) ([]model.JobPosting, error) {
	s.lastJobLimit = limit
	if limit > 0 && len(s.jobs) > limit {
		return s.jobs[:limit], nil
	}
	return s.jobs, nil
}

func (s *stubStore) InsertMatch(_ context.Context, match *model.Match) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, *match)
	s.matches[match.ID] = *match
	return nil
}

func (s *stubStore) GetMatch(_ context.Context, id string) (*model.Match, error) {
	match, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	copied := match
	return &copied, nil
}

func (s *stubStore) UpdateMatch(_ context.Context, match *model.Match) error {
	s.matches[match.ID] = *match
	return nil
}

func (s *stubStore) ListUserMatches(_ context.Context, userID string, limit int) ([]model.Match, error) {
	var out []model.Match
	for _, m := range s.matches {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubCheckpointer struct {
	created []model.Checkpoint
	err     error
}

func (s *stubCheckpointer) Create(_ context.Context, checkpointType, entityID string, state map[string]any, createdBy string) (*model.Checkpoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := model.Checkpoint{
		ID:             fmt.Sprintf("cp-%d", len(s.created)+1),
		CheckpointType: checkpointType,
		EntityID:       entityID,
		StateData:      datatypes.JSONMap(state),
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
	}
	s.created = append(s.created, cp)
	return &cp, nil
}

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(_ context.Context, _ *ai.MatchContext) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func xdmiqAssessment(createdAt time.Time, strengths []string, overall float64) model.CapabilityAssessment {
	return model.CapabilityAssessment{
		UserID:         "u1",
		AssessmentType: model.AssessmentTypeXDMIQ,
		Results: datatypes.JSONMap{
			"xdmiq_score": map[string]any{
				"overall_score": overall,
				"strengths":     toAny(strengths),
			},
		},
		CreatedAt: createdAt,
	}
}

func genericAssessment(createdAt time.Time, skills []string, proficiency float64) model.CapabilityAssessment {
	return model.CapabilityAssessment{
		UserID:         "u1",
		AssessmentType: model.AssessmentTypeGeneric,
		Results: datatypes.JSONMap{
			"skills":                 toAny(skills),
			"tool_proficiency_score": proficiency,
		},
		CreatedAt: createdAt,
	}
}

func toAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func newTestEngine(t *testing.T, store *stubStore, checkpoints *stubCheckpointer, summarizer ai.Summarizer) *Engine {
	t.Helper()

	engine, err := New(Deps{
		Assessments: store,
		Users:       store,
		Jobs:        store,
		Matches:     store,
		Checkpoints: checkpoints,
		Summarizer:  summarizer,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return engine
}

func TestGenerateMatchesEndToEnd(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1", Alias: "falcon"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Python", "FastAPI"}, 60),
	}
	store.jobs = []model.JobPosting{{
		ID:              "j1",
		Title:           "Backend Engineer",
		RequiredSkills:  datatypes.NewJSONSlice([]string{"Python", "FastAPI", "React"}),
		PreferredSkills: datatypes.NewJSONSlice([]string{"AWS"}),
		Active:          true,
	}}
	checkpoints := &stubCheckpointer{}

	engine := newTestEngine(t, store, checkpoints, nil)

	matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GenerateMatches error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	m := matches[0]
	if m.CompatibilityScore != 50 {
		t.Fatalf("expected compatibility 50, got %d", m.CompatibilityScore)
	}
	if m.LongevityScore != 48 {
		t.Fatalf("expected longevity 48, got %d", m.LongevityScore)
	}
	if m.MatchScore != 49 {
		t.Fatalf("expected final score 49, got %d", m.MatchScore)
	}
	if m.PredictedMonths != 12 {
		t.Fatalf("expected 12 predicted months, got %d", m.PredictedMonths)
	}

	// Two overlapping required skills, no qualitative note below 60, no
	// factors below thresholds.
	expectedReasons := []string{
		"Matches required skill: Python",
		"Matches required skill: FastAPI",
	}
	if len(m.MatchReasons) != len(expectedReasons) {
		t.Fatalf("unexpected reasons: %v", m.MatchReasons)
	}
	for i, r := range expectedReasons {
		if m.MatchReasons[i] != r {
			t.Fatalf("expected reason %q, got %q", r, m.MatchReasons[i])
		}
	}

	if len(checkpoints.created) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(checkpoints.created))
	}
	cp := checkpoints.created[0]
	if cp.CheckpointType != CheckpointMatchGenerated {
		t.Fatalf("unexpected checkpoint type %q", cp.CheckpointType)
	}
	if cp.EntityID != m.ID {
		t.Fatalf("checkpoint entity %q does not reference the match %q", cp.EntityID, m.ID)
	}
	if m.CheckpointID != cp.ID {
		t.Fatalf("match does not reference its checkpoint")
	}

	stored := store.matches[m.ID]
	if stored.CheckpointID != cp.ID {
		t.Fatalf("stored match row missing checkpoint id")
	}
}

func TestGenerateMatchesPrefersXDMIQAssessment(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1"}
	// The generic assessment is newer but XDMIQ still wins.
	store.assessments = []model.CapabilityAssessment{
		genericAssessment(time.Now(), []string{"Excel"}, 40),
		xdmiqAssessment(time.Now().Add(-24*time.Hour), []string{"Python"}, 80),
	}
	store.jobs = []model.JobPosting{{
		ID:             "j1",
		RequiredSkills: datatypes.NewJSONSlice([]string{"Python"}),
		Active:         true,
	}}

	engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

	matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GenerateMatches error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected a match from the xdmiq profile, got %d", len(matches))
	}

	// 80*0.4 + full required coverage 40 = 72; the generic profile
	// would have scored 16 and been filtered out.
	if matches[0].CompatibilityScore != 72 {
		t.Fatalf("expected compatibility 72 from xdmiq skills, got %d", matches[0].CompatibilityScore)
	}
}

func TestGenerateMatchesAdmissionFilter(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Go"}, 50),
	}
	store.jobs = []model.JobPosting{
		{ID: "fit", RequiredSkills: datatypes.NewJSONSlice([]string{"Go"}), Active: true},
		{ID: "unfit", RequiredSkills: datatypes.NewJSONSlice([]string{"Cobol", "Fortran"}), Active: true},
	}

	engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

	matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GenerateMatches error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the fitting posting, got %d matches", len(matches))
	}
	if matches[0].JobPostingID != "fit" {
		t.Fatalf("expected posting 'fit', got %q", matches[0].JobPostingID)
	}
	if matches[0].CompatibilityScore < MinCompatibility {
		t.Fatalf("admitted match below the threshold: %d", matches[0].CompatibilityScore)
	}
}

func TestGenerateMatchesWeightingLawAndRanking(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Go", "SQL", "AWS"}, 70),
	}
	store.jobs = []model.JobPosting{
		{ID: "j1", RequiredSkills: datatypes.NewJSONSlice([]string{"Go", "Rust"}), Active: true},
		{ID: "j2", RequiredSkills: datatypes.NewJSONSlice([]string{"Go", "SQL"}), Active: true},
		{ID: "j3", RequiredSkills: datatypes.NewJSONSlice([]string{"Go", "SQL", "AWS"}), Active: true},
	}

	engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

	matches, err := engine.GenerateMatches(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("GenerateMatches error: %v", err)
	}

	if store.lastJobLimit != 6 {
		t.Fatalf("expected candidate over-fetch of limit*3=6, got %d", store.lastJobLimit)
	}
	if len(matches) != 2 {
		t.Fatalf("expected truncation to limit 2, got %d", len(matches))
	}

	for _, m := range matches {
		expected := int(math.Round(0.4*float64(m.CompatibilityScore) + 0.6*float64(m.LongevityScore)))
		if m.MatchScore != expected {
			t.Fatalf("match %s violates the weighting law: got %d, expected %d", m.JobPostingID, m.MatchScore, expected)
		}
		if m.MatchScore < 0 || m.MatchScore > 100 {
			t.Fatalf("match score %d out of bounds", m.MatchScore)
		}
	}

	if matches[0].MatchScore < matches[1].MatchScore {
		t.Fatalf("matches not ranked descending: %d before %d", matches[0].MatchScore, matches[1].MatchScore)
	}
}

func TestGenerateMatchesPreconditions(t *testing.T) {
	t.Parallel()

	t.Run("no assessment", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		store.user = &model.AnonymousUser{ID: "u1"}

		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		_, err := engine.GenerateMatches(context.Background(), "u1", 10)
		if !errors.Is(err, ErrNoAssessment) {
			t.Fatalf("expected ErrNoAssessment, got %v", err)
		}
	})

	t.Run("no user", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		store.assessments = []model.CapabilityAssessment{
			xdmiqAssessment(time.Now(), []string{"Go"}, 80),
		}

		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		_, err := engine.GenerateMatches(context.Background(), "u1", 10)
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestGenerateMatchesSummarizer(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1", Alias: "falcon"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Go"}, 80),
	}
	store.jobs = []model.JobPosting{
		{ID: "j1", RequiredSkills: datatypes.NewJSONSlice([]string{"Go"}), Active: true},
	}

	t.Run("summary attached", func(t *testing.T) {
		t.Parallel()

		s := &stubSummarizer{summary: "A strong pairing."}
		engine := newTestEngine(t, store, &stubCheckpointer{}, s)

		matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
		if err != nil {
			t.Fatalf("GenerateMatches error: %v", err)
		}
		if s.calls != 1 {
			t.Fatalf("expected 1 summarizer call, got %d", s.calls)
		}
		if matches[0].AISummary != "A strong pairing." {
			t.Fatalf("expected summary on match, got %q", matches[0].AISummary)
		}
	})

	t.Run("failure tolerated", func(t *testing.T) {
		t.Parallel()

		s := &stubSummarizer{err: errors.New("quota exceeded")}
		engine := newTestEngine(t, newStubStoreLike(store), &stubCheckpointer{}, s)

		matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
		if err != nil {
			t.Fatalf("expected generation to succeed without summaries, got %v", err)
		}
		if matches[0].AISummary != "" {
			t.Fatalf("expected empty summary, got %q", matches[0].AISummary)
		}
	})
}

// newStubStoreLike copies the fixture parts of a stub store so parallel
// subtests do not share mutable match state.
func newStubStoreLike(src *stubStore) *stubStore {
	dst := newStubStore()
	dst.user = src.user
	dst.assessments = src.assessments
	dst.jobs = src.jobs
	return dst
}

func TestGenerateMatchesAppliesFilters(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Go"}, 80),
	}
	store.jobs = []model.JobPosting{
		{ID: "j1", RequiredSkills: datatypes.NewJSONSlice([]string{"Go"}), Active: true},
		{ID: "j2", RequiredSkills: datatypes.NewJSONSlice([]string{"Go"}), Active: true},
	}
	// The user already has a match for j1; the history filter drops it.
	store.matches["existing"] = model.Match{ID: "existing", UserID: "u1", JobPostingID: "j1"}

	engine, err := New(Deps{
		Assessments: store,
		Users:       store,
		Jobs:        store,
		Matches:     store,
		Checkpoints: &stubCheckpointer{},
		Filters:     []filtering.Filter{filtering.NewMatchedHistory()},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("GenerateMatches error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match after filtering, got %d", len(matches))
	}
	if matches[0].JobPostingID != "j2" {
		t.Fatalf("expected posting j2, got %q", matches[0].JobPostingID)
	}
}

func TestGenerateMatchesBestEffortBatch(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.user = &model.AnonymousUser{ID: "u1"}
	store.assessments = []model.CapabilityAssessment{
		xdmiqAssessment(time.Now(), []string{"Go"}, 80),
	}
	store.jobs = []model.JobPosting{
		{ID: "j1", RequiredSkills: datatypes.NewJSONSlice([]string{"Go"}), Active: true},
	}
	store.insertErr = errors.New("disk full")

	engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

	matches, err := engine.GenerateMatches(context.Background(), "u1", 10)
	if err == nil {
		t.Fatal("expected an error from the failing insert")
	}
	// Nothing succeeded before the failure; the batch is not retried.
	if len(matches) != 0 {
		t.Fatalf("expected no persisted matches, got %d", len(matches))
	}
}

func seedReviewedMatch(store *stubStore, score int) string {
	match := model.Match{
		ID:           "m1",
		UserID:       "u1",
		JobPostingID: "j1",
		MatchScore:   score,
		MatchReasons: datatypes.NewJSONSlice([]string{"Matches required skill: Go"}),
	}
	store.matches[match.ID] = match
	return match.ID
}

func TestHumanReviewMatchDecisions(t *testing.T) {
	t.Parallel()

	t.Run("approved keeps the score", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		id := seedReviewedMatch(store, 70)
		checkpoints := &stubCheckpointer{}
		engine := newTestEngine(t, store, checkpoints, nil)

		feedback := "looks right"
		match, err := engine.HumanReviewMatch(context.Background(), id, "rev1", DecisionApproved, &feedback)
		if err != nil {
			t.Fatalf("HumanReviewMatch error: %v", err)
		}
		if match.MatchScore != 70 {
			t.Fatalf("expected unchanged score 70, got %d", match.MatchScore)
		}
		if !match.HumanReviewed {
			t.Fatal("expected match to be marked reviewed")
		}
		if match.HumanReviewerID == nil || *match.HumanReviewerID != "rev1" {
			t.Fatalf("expected reviewer id rev1, got %v", match.HumanReviewerID)
		}
		if match.HumanFeedback == nil || *match.HumanFeedback != feedback {
			t.Fatalf("expected feedback to be stored, got %v", match.HumanFeedback)
		}

		if len(checkpoints.created) != 1 {
			t.Fatalf("expected a review checkpoint, got %d", len(checkpoints.created))
		}
		cp := checkpoints.created[0]
		if cp.CheckpointType != CheckpointMatchReviewed {
			t.Fatalf("unexpected checkpoint type %q", cp.CheckpointType)
		}
		if cp.CreatedBy != "rev1" {
			t.Fatalf("expected checkpoint created by the reviewer, got %q", cp.CreatedBy)
		}
		if match.CheckpointID != cp.ID {
			t.Fatal("match does not reference the review checkpoint")
		}
	})

	t.Run("rejection applies the flat penalty and is not idempotent", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		id := seedReviewedMatch(store, 70)
		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		match, err := engine.HumanReviewMatch(context.Background(), id, "rev1", DecisionRejected, nil)
		if err != nil {
			t.Fatalf("HumanReviewMatch error: %v", err)
		}
		if match.MatchScore != 50 {
			t.Fatalf("expected 70-20=50, got %d", match.MatchScore)
		}

		// Reviewing again subtracts the penalty again. That repeatability
		// is part of the contract.
		match, err = engine.HumanReviewMatch(context.Background(), id, "rev1", DecisionRejected, nil)
		if err != nil {
			t.Fatalf("second review error: %v", err)
		}
		if match.MatchScore != 30 {
			t.Fatalf("expected 50-20=30 on repeat rejection, got %d", match.MatchScore)
		}
	})

	t.Run("rejection never goes below zero", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		id := seedReviewedMatch(store, 10)
		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		match, err := engine.HumanReviewMatch(context.Background(), id, "rev1", DecisionRejected, nil)
		if err != nil {
			t.Fatalf("HumanReviewMatch error: %v", err)
		}
		if match.MatchScore != 0 {
			t.Fatalf("expected floor at 0, got %d", match.MatchScore)
		}
	})

	t.Run("needs revision appends a note and keeps the score", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		id := seedReviewedMatch(store, 70)
		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		match, err := engine.HumanReviewMatch(context.Background(), id, "rev1", DecisionNeedsRevision, nil)
		if err != nil {
			t.Fatalf("HumanReviewMatch error: %v", err)
		}
		if match.MatchScore != 70 {
			t.Fatalf("expected unchanged score, got %d", match.MatchScore)
		}
		last := match.MatchReasons[len(match.MatchReasons)-1]
		if last != "Needs refinement" {
			t.Fatalf("expected refinement note appended, got %q", last)
		}
	})

	t.Run("unknown decision is rejected", func(t *testing.T) {
		t.Parallel()

		store := newStubStore()
		id := seedReviewedMatch(store, 70)
		engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

		if _, err := engine.HumanReviewMatch(context.Background(), id, "rev1", "maybe", nil); err == nil {
			t.Fatal("expected an error for an unknown decision")
		}
	})

	t.Run("missing match", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(t, newStubStore(), &stubCheckpointer{}, nil)

		_, err := engine.HumanReviewMatch(context.Background(), "nope", "rev1", DecisionApproved, nil)
		if !errors.Is(err, ErrMatchNotFound) {
			t.Fatalf("expected ErrMatchNotFound, got %v", err)
		}
	})
}

func TestGetMatch(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	id := seedReviewedMatch(store, 70)
	engine := newTestEngine(t, store, &stubCheckpointer{}, nil)

	match, err := engine.GetMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMatch error: %v", err)
	}
	if match.ID != id {
		t.Fatalf("unexpected match %q", match.ID)
	}

	if _, err := engine.GetMatch(context.Background(), "nope"); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}
