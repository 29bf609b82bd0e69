package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/xdmiq/jobmatch/internal/model"
)

// Store wraps the sqlite database and implements the collaborator
// interfaces consumed by the matching engine, plus the write paths used
// for seeding.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the sqlite database at dbPath and
// migrates all entities.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&model.AnonymousUser{},
		&model.CapabilityAssessment{},
		&model.JobPosting{},
		&model.Match{},
		&model.Checkpoint{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// DB exposes the underlying gorm handle for collaborators that share
// the connection, such as the checkpoint service.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// CreateUser inserts an anonymous user.
func (s *Store) CreateUser(ctx context.Context, user *model.AnonymousUser) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id, or nil when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*model.AnonymousUser, error) {
	var user model.AnonymousUser
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// CreateAssessment inserts a capability assessment.
func (s *Store) CreateAssessment(ctx context.Context, assessment *model.CapabilityAssessment) error {
	if err := s.db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// ListAssessments returns all assessments of the user, newest first.
func (s *Store) ListAssessments(ctx context.Context, userID string) ([]model.CapabilityAssessment, error) {
	var assessments []model.CapabilityAssessment
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&assessments).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// UpsertJobPostings writes postings, replacing rows with the same id.
func (s *Store) UpsertJobPostings(ctx context.Context, jobs []model.JobPosting) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Save(&jobs).Error; err != nil {
		return fmt.Errorf("upsert job postings: %w", err)
	}
	return nil
}

// ListActiveJobs returns up to limit active postings, newest first.
func (s *Store) ListActiveJobs(ctx context.Context, limit int) ([]model.JobPosting, error) {
	var jobs []model.JobPosting
	query := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list active postings: %w", err)
	}
	return jobs, nil
}

// InsertMatch persists a newly generated match row.
func (s *Store) InsertMatch(ctx context.Context, match *model.Match) error {
	if err := s.db.WithContext(ctx).Create(match).Error; err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetMatch returns the match with the given id, or nil when absent.
func (s *Store) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	var match model.Match
	if err := s.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &match, nil
}

// UpdateMatch writes the full match row back.
func (s *Store) UpdateMatch(ctx context.Context, match *model.Match) error {
	if err := s.db.WithContext(ctx).Save(match).Error; err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

// ListUserMatches returns the user's matches ordered by match score
// descending.
func (s *Store) ListUserMatches(ctx context.Context, userID string, limit int) ([]model.Match, error) {
	var matches []model.Match
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("match_score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("list user matches: %w", err)
	}
	return matches, nil
}
