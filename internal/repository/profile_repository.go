package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neuroboost/study-core/internal/model"
)

// ProfileStore persists gamification profiles. Update runs fn against the
// stored profile atomically, creating a fresh level-1 profile when none exists.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, fn func(p *model.Profile) error) (*model.Profile, error)
}

func newProfile(userID string) *model.Profile {
	return &model.Profile{UserID: userID, Level: 1}
}

// ─── PostgreSQL ─────────────────────────────────────────────────────────────

// ProfileRepository stores profiles in PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const selectProfile = `SELECT xp, level, current_streak, last_task_completed, total_focus_time
	FROM profiles WHERE user_id = $1`

// Get returns the stored profile, or a fresh one if the user has none yet.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p := newProfile(userID)
	err := r.pool.QueryRow(ctx, selectProfile, userID).
		Scan(&p.XP, &p.Level, &p.CurrentStreak, &p.LastTaskCompleted, &p.TotalFocusTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

// Update locks the profile row for the duration of fn.
func (r *ProfileRepository) Update(ctx context.Context, userID string, fn func(p *model.Profile) error) (*model.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	p := newProfile(userID)
	if err := tx.QueryRow(ctx, selectProfile+` FOR UPDATE`, userID).
		Scan(&p.XP, &p.Level, &p.CurrentStreak, &p.LastTaskCompleted, &p.TotalFocusTime); err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE profiles
		 SET xp = $2, level = $3, current_streak = $4, last_task_completed = $5,
		     total_focus_time = $6, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, p.XP, p.Level, p.CurrentStreak, p.LastTaskCompleted, p.TotalFocusTime); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return p, nil
}

// ─── Memory ─────────────────────────────────────────────────────────────────

// MemoryProfileRepository keeps profiles in process memory.
type MemoryProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
}

// NewMemoryProfileRepository creates an empty MemoryProfileRepository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]model.Profile)}
}

func (r *MemoryProfileRepository) Get(_ context.Context, userID string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[userID]; ok {
		return &p, nil
	}
	return newProfile(userID), nil
}

func (r *MemoryProfileRepository) Update(_ context.Context, userID string, fn func(p *model.Profile) error) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := newProfile(userID)
	if stored, ok := r.profiles[userID]; ok {
		*p = stored
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	r.profiles[userID] = *p
	out := *p
	return &out, nil
}
