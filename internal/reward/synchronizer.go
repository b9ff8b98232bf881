// Package reward owns the process-wide XP, level and streak cache. Optimistic local
// gains are applied immediately; server snapshots overwrite them unless a newer
// update has already been applied.
package reward

import (
	"context"
	"fmt"
	"sync"

	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/model"
	"github.com/rs/zerolog"
)

// Seq orders reward-bearing requests by issue time.
type Seq uint64

// Source fetches authoritative reward values.
type Source interface {
	RewardSnapshot(ctx context.Context) (*model.RewardSnapshot, error)
	StreakSnapshot(ctx context.Context) (*model.StreakSnapshot, error)
}

// Synchronizer is the single write path for RewardState.
type Synchronizer struct {
	mu            sync.Mutex
	state         model.RewardState
	nextSeq       Seq
	lastXPSeq     Seq
	lastStreakSeq Seq

	source Source
	pub    events.Publisher
	log    zerolog.Logger
}

// NewSynchronizer creates a Synchronizer starting at level 1 with no XP.
func NewSynchronizer(source Source, pub events.Publisher, log zerolog.Logger) *Synchronizer {
	if pub == nil {
		pub = events.Discard
	}
	return &Synchronizer{
		state:  model.RewardState{Level: 1, XPToNext: XPPerLevel},
		source: source,
		pub:    pub,
		log:    log.With().Str("component", "reward_sync").Logger(),
	}
}

// State returns a copy of the current reward state.
func (s *Synchronizer) State() model.RewardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Issue allocates a sequence number for a request that carries no optimistic gain.
func (s *Synchronizer) Issue() Seq {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// ApplyLocalGain adds amount XP immediately and returns the sequence number the
// matching request must be tagged with, plus whether the projection crossed a
// level boundary.
func (s *Synchronizer) ApplyLocalGain(amount int) (Seq, bool) {
	if amount < 0 {
		amount = 0
	}

	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.lastXPSeq = seq

	prevXP := s.state.XP
	s.state.XP += amount
	crossed := ProjectLevel(s.state.XP) > ProjectLevel(prevXP)
	if projected := ProjectLevel(s.state.XP); projected > s.state.Level {
		s.state.Level = projected
	}
	s.state.XPToNext = ProjectXPToNext(s.state.Level, s.state.XP)
	snapshot := s.state
	s.mu.Unlock()

	if amount > 0 {
		s.pub.Publish(events.Event{Type: events.TypeXPGained, Data: events.XPGained{Amount: amount}})
	}
	s.pub.Publish(events.Event{Type: events.TypeRewardChanged, Data: snapshot})
	if crossed {
		s.pub.Publish(events.Event{Type: events.TypeLevelUp, Data: events.LevelUp{Level: snapshot.Level, Provisional: true}})
	}
	return seq, crossed
}

// Reconcile overwrites XP and level with server values unless an update newer
// than seq has already been applied.
func (s *Synchronizer) Reconcile(seq Seq, snap model.RewardSnapshot) (leveledUp, applied bool) {
	s.mu.Lock()
	if seq < s.lastXPSeq {
		last := s.lastXPSeq
		s.mu.Unlock()
		s.log.Debug().Uint64("seq", uint64(seq)).Uint64("last_applied", uint64(last)).Msg("Discarding stale reward snapshot")
		return false, false
	}
	s.lastXPSeq = seq

	prevLevel := s.state.Level
	s.state.XP = snap.XP
	s.state.Level = snap.Level
	s.state.XPToNext = snap.XPToNext
	leveledUp = snap.Level > prevLevel
	snapshot := s.state
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeRewardChanged, Data: snapshot})
	if leveledUp {
		s.pub.Publish(events.Event{Type: events.TypeLevelUp, Data: events.LevelUp{Level: snap.Level}})
	}
	return leveledUp, true
}

// ConfirmLevelUp announces a level-up the server reported for a request whose
// gain was already projected locally, so Reconcile saw no level change.
func (s *Synchronizer) ConfirmLevelUp(level int) {
	s.pub.Publish(events.Event{Type: events.TypeLevelUp, Data: events.LevelUp{Level: level}})
}

// ReconcileStreak overwrites the streak unless a newer streak update was applied.
func (s *Synchronizer) ReconcileStreak(seq Seq, upd model.StreakUpdate) bool {
	s.mu.Lock()
	if seq < s.lastStreakSeq {
		s.mu.Unlock()
		s.log.Debug().Uint64("seq", uint64(seq)).Msg("Discarding stale streak update")
		return false
	}
	s.lastStreakSeq = seq
	s.state.StreakDays = upd.CurrentStreak
	s.state.StreakActive = upd.Active
	snapshot := s.state
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeStreakChanged, Data: snapshot})
	if upd.Increased {
		s.pub.Publish(events.Event{
			Type: events.TypeStreakIncreased,
			Data: events.StreakIncreased{Streak: upd.CurrentStreak, BonusXP: upd.BonusXP},
		})
	}
	return true
}

// Refresh pulls both snapshots from the source. Each fetch is tagged at issue time,
// so a refresh never clobbers a later optimistic gain.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	xpSeq := s.Issue()
	snap, err := s.source.RewardSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch reward snapshot: %w", err)
	}
	s.Reconcile(xpSeq, *snap)

	streakSeq := s.Issue()
	streak, err := s.source.StreakSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch streak snapshot: %w", err)
	}
	s.ReconcileStreak(streakSeq, model.StreakUpdate{
		CurrentStreak: streak.CurrentStreak,
		Active:        streak.StreakActive,
	})
	return nil
}

// Load initializes the cache from the server. Failures are logged and leave the
// previous state in place.
func (s *Synchronizer) Load(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Reward refresh failed, keeping cached state")
	}
}

// ReportGain applies a gain reported by a graded session and then reconciles.
func (s *Synchronizer) ReportGain(ctx context.Context, amount int) {
	if amount <= 0 {
		return
	}
	s.ApplyLocalGain(amount)
	s.Load(ctx)
}
